package kerneltypes

import "time"

// PointType classifies the role a Point plays in the topology.
type PointType string

const (
	PointHalt   PointType = "HALT"
	PointPark   PointType = "PARK"
	PointReport PointType = "REPORT"
)

// Pose is a vehicle's or point's spatial position and orientation. Z is
// carried for completeness (multi-level layouts); the router only
// consumes X/Y via path length and the evaluators' properties.
type Pose struct {
	X, Y, Z     int64
	Orientation float64
}

// Point is a topological node: a discrete position a vehicle may occupy.
type Point struct {
	ID               int64
	Name             string
	Type             PointType
	Pose             Pose
	OccupyingVehicle *Ref
	IncomingPaths    []Ref
	OutgoingPaths    []Ref
}

// Clone returns a defensive deep-enough copy: slices and the occupying
// vehicle pointer are copied, never shared with the original.
func (p *Point) Clone() *Point {
	if p == nil {
		return nil
	}
	cp := *p
	if p.OccupyingVehicle != nil {
		v := *p.OccupyingVehicle
		cp.OccupyingVehicle = &v
	}
	cp.IncomingPaths = append([]Ref(nil), p.IncomingPaths...)
	cp.OutgoingPaths = append([]Ref(nil), p.OutgoingPaths...)
	return &cp
}

// Ref returns a Resolved reference to p.
func (p *Point) Ref() Ref {
	return NewRef(ClassPoint, p.ID, p.Name)
}

// Path is a directed edge between two points.
type Path struct {
	ID                 int64
	Name               string
	Source             Ref
	Destination        Ref
	Length             int64
	MaxVelocity        uint
	MaxReverseVelocity uint
	Locked             bool
	Properties         map[string]string
}

// Clone returns a defensive copy of p.
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Properties = make(map[string]string, len(p.Properties))
	for k, v := range p.Properties {
		cp.Properties[k] = v
	}
	return &cp
}

func (p *Path) Ref() Ref {
	return NewRef(ClassPath, p.ID, p.Name)
}

// PassableForward reports whether a vehicle may traverse p from Source to
// Destination: it must not be locked and must allow non-zero velocity in
// that direction.
func (p *Path) PassableForward() bool {
	return !p.Locked && p.MaxVelocity > 0
}

// PassableReverse reports whether a vehicle may traverse p from
// Destination to Source.
func (p *Path) PassableReverse() bool {
	return !p.Locked && p.MaxReverseVelocity > 0
}

// LocationType enumerates the operations its locations offer (e.g.
// "charge", "load").
type LocationType struct {
	ID                int64
	Name              string
	AllowedOperations []string
}

func (lt *LocationType) Ref() Ref {
	return NewRef(ClassLocationType, lt.ID, lt.Name)
}

// Allows reports whether operation is among lt's allowed operations.
func (lt *LocationType) Allows(operation string) bool {
	for _, op := range lt.AllowedOperations {
		if op == operation {
			return true
		}
	}
	return false
}

// LocationLink attaches a Location to one Point, with the subset of the
// location type's operations this particular link permits. An empty
// AllowedOperations means "every operation the location type allows".
type LocationLink struct {
	Point             Ref
	AllowedOperations []string
}

// Allows reports whether operation may be performed via this link, given
// the location's type.
func (l LocationLink) Allows(operation string, locType *LocationType) bool {
	if len(l.AllowedOperations) == 0 {
		return locType.Allows(operation)
	}
	for _, op := range l.AllowedOperations {
		if op == operation {
			return true
		}
	}
	return false
}

// Location is a station with attached links to points.
type Location struct {
	ID    int64
	Name  string
	Type  Ref
	Links []LocationLink
}

func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	cp := *l
	cp.Links = append([]LocationLink(nil), l.Links...)
	return &cp
}

func (l *Location) Ref() Ref {
	return NewRef(ClassLocation, l.ID, l.Name)
}

// Block is a named set of resource references that must be held as a
// single indivisible unit whenever any member is claimed.
type Block struct {
	ID      int64
	Name    string
	Members []Ref
}

func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Members = append([]Ref(nil), b.Members...)
	return &cp
}

func (b *Block) Ref() Ref {
	return NewRef(ClassBlock, b.ID, b.Name)
}

// VehicleState is the vehicle's physical/communication state as last
// reported by its communication adapter.
type VehicleState string

const (
	VehicleUnknown     VehicleState = "UNKNOWN"
	VehicleUnavailable VehicleState = "UNAVAILABLE"
	VehicleError       VehicleState = "ERROR"
	VehicleIdle        VehicleState = "IDLE"
	VehicleExecuting   VehicleState = "EXECUTING"
	VehicleCharging    VehicleState = "CHARGING"
)

// VehicleProcState is the vehicle's order-processing state, owned by the
// Dispatcher.
type VehicleProcState string

const (
	ProcIdle            VehicleProcState = "IDLE"
	ProcAwaitingOrder   VehicleProcState = "AWAITING_ORDER"
	ProcProcessingOrder VehicleProcState = "PROCESSING_ORDER"
)

// Vehicle is a single AGV.
type Vehicle struct {
	ID                      int64
	Name                    string
	Energy                  int
	EnergyCriticalThreshold int
	EnergyGoodThreshold     int
	MaxVelocity             uint
	CurrentPosition         *Ref
	NextPosition            *Ref
	Pose                    *Pose
	Orientation             float64
	State                   VehicleState
	ProcState               VehicleProcState
	TransportOrder          *Ref
	DriveOrderIndex         int
	AllocatedResources      []ResourceSet
	RechargeOperation       string
	Locked                  bool
}

func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	cp := *v
	if v.CurrentPosition != nil {
		p := *v.CurrentPosition
		cp.CurrentPosition = &p
	}
	if v.NextPosition != nil {
		p := *v.NextPosition
		cp.NextPosition = &p
	}
	if v.Pose != nil {
		p := *v.Pose
		cp.Pose = &p
	}
	if v.TransportOrder != nil {
		o := *v.TransportOrder
		cp.TransportOrder = &o
	}
	cp.AllocatedResources = make([]ResourceSet, len(v.AllocatedResources))
	for i, rs := range v.AllocatedResources {
		cp.AllocatedResources[i] = rs.Clone()
	}
	return &cp
}

func (v *Vehicle) Ref() Ref {
	return NewRef(ClassVehicle, v.ID, v.Name)
}

// IsCriticallyLow reports whether the vehicle's energy is at or below its
// critical threshold and must recharge before accepting ordinary work.
func (v *Vehicle) IsCriticallyLow() bool {
	return v.Energy <= v.EnergyCriticalThreshold
}

// AllocatedUnion flattens AllocatedResources into one set, used by
// invariant checks and by the Dispatcher when freeing everything a
// vehicle holds.
func (v *Vehicle) AllocatedUnion() ResourceSet {
	var out ResourceSet
	for _, rs := range v.AllocatedResources {
		out = out.Union(rs)
	}
	return out
}

// OrderState is a TransportOrder's position in its lifecycle.
type OrderState string

const (
	OrderRaw            OrderState = "RAW"
	OrderActive         OrderState = "ACTIVE"
	OrderBeingProcessed OrderState = "BEING_PROCESSED"
	OrderFinished       OrderState = "FINISHED"
	OrderFailed         OrderState = "FAILED"
	OrderWithdrawn      OrderState = "WITHDRAWN"
)

// IsTerminal reports whether s is a final state a TransportOrder cannot
// leave.
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderFinished, OrderFailed, OrderWithdrawn:
		return true
	default:
		return false
	}
}

// DriveOrderState is a DriveOrder's position in its lifecycle.
type DriveOrderState string

const (
	DriveOrderPristine   DriveOrderState = "PRISTINE"
	DriveOrderTravelling DriveOrderState = "TRAVELLING"
	DriveOrderOperating  DriveOrderState = "OPERATING"
	DriveOrderFinished   DriveOrderState = "FINISHED"
	DriveOrderFailed     DriveOrderState = "FAILED"
)

// Step is one routed leg of a Route: traverse Path, arriving at
// DestinationPoint facing Orientation.
type Step struct {
	Path             Ref
	DestinationPoint Ref
	Orientation      float64
	Index            int
}

// Route is the routed realisation of a DriveOrder: an ordered sequence of
// Steps (empty when source and destination are the same point) plus the aggregate cost the Route Evaluator assigned
// to it.
type Route struct {
	Steps []Step
	Cost  int64
}

func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Steps = append([]Step(nil), r.Steps...)
	return &cp
}

// Destination is a DriveOrder's target: a location (or, via a Ref with
// class ClassPoint, a bare point) plus the operation to perform there, if
// any.
type Destination struct {
	Location  Ref
	Operation string
}

// DriveOrder is one destination leg of a TransportOrder.
type DriveOrder struct {
	Destination Destination
	Route       *Route
	State       DriveOrderState
}

func (d DriveOrder) Clone() DriveOrder {
	d.Route = d.Route.Clone()
	return d
}

// TransportOrder is an ordered, non-empty sequence of DriveOrders to be
// executed by one vehicle.
type TransportOrder struct {
	ID                int64
	Name              string
	IntendedVehicle   *Ref
	ProcessingVehicle *Ref
	DriveOrders       []DriveOrder
	State             OrderState
	Deadline          time.Time
	CreatedAt         time.Time
	FinishedAt        *time.Time
	Dependencies      []Ref
	WrappingSequence  *Ref
}

func (t *TransportOrder) Clone() *TransportOrder {
	if t == nil {
		return nil
	}
	cp := *t
	if t.IntendedVehicle != nil {
		v := *t.IntendedVehicle
		cp.IntendedVehicle = &v
	}
	if t.ProcessingVehicle != nil {
		v := *t.ProcessingVehicle
		cp.ProcessingVehicle = &v
	}
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		cp.FinishedAt = &f
	}
	if t.WrappingSequence != nil {
		w := *t.WrappingSequence
		cp.WrappingSequence = &w
	}
	cp.DriveOrders = make([]DriveOrder, len(t.DriveOrders))
	for i, do := range t.DriveOrders {
		cp.DriveOrders[i] = do.Clone()
	}
	cp.Dependencies = append([]Ref(nil), t.Dependencies...)
	return &cp
}

func (t *TransportOrder) Ref() Ref {
	return NewRef(ClassTransportOrder, t.ID, t.Name)
}

// CurrentDriveOrder returns the drive order a vehicle processing this
// order is currently on, and whether one exists (it may already be past
// the last one if the order just finished).
func (t *TransportOrder) CurrentDriveOrder(index int) (*DriveOrder, bool) {
	if index < 0 || index >= len(t.DriveOrders) {
		return nil, false
	}
	return &t.DriveOrders[index], true
}

// AllDriveOrdersFinished reports whether every drive order in t is FINISHED.
func (t *TransportOrder) AllDriveOrdersFinished() bool {
	for _, do := range t.DriveOrders {
		if do.State != DriveOrderFinished {
			return false
		}
	}
	return true
}

// IsAvailable reports whether t is eligible for assignment: RAW or ACTIVE
// and every dependency has reached a terminal state.
func (t *TransportOrder) IsAvailable(dependencyTerminal func(Ref) bool) bool {
	if t.State != OrderRaw && t.State != OrderActive {
		return false
	}
	for _, dep := range t.Dependencies {
		if !dependencyTerminal(dep) {
			return false
		}
	}
	return true
}
