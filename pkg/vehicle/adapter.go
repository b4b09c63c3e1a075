package vehicle

import "github.com/cuemby/agvkernel/pkg/kerneltypes"

// ReportKind classifies an asynchronous Report from an Adapter.
type ReportKind string

const (
	ReportPosition          ReportKind = "position"
	ReportState             ReportKind = "state"
	ReportEnergy            ReportKind = "energy"
	ReportOperationComplete ReportKind = "operation_complete"
	ReportError             ReportKind = "error"
)

// Report is one asynchronous callback from a vehicle's communication
// adapter: reportPosition, reportState, reportEnergy,
// reportOperationComplete, reportError collapsed into a single tagged
// struct so the Dispatcher can drain them off one channel.
type Report struct {
	VehicleID    int64
	Kind         ReportKind
	Position     kerneltypes.Ref
	State        kerneltypes.VehicleState
	Energy       int
	ErrorKind    kerneltypes.ErrorKind
	ErrorMessage string
}

// Adapter is the boundary the kernel drives a vehicle through. SendCommand
// carries one routed Step plus the operation to perform once it arrives
// (empty if the drive order has no operating phase). Abort requests the
// vehicle stop its current command; the kernel does not rely on Abort
// interrupting an in-flight step, only on it preventing any step
// not yet started.
type Adapter interface {
	SendCommand(step kerneltypes.Step, operation string) error
	Abort() error
}
