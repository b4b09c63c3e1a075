package vehicle

import (
	"sync"
	"time"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/rs/zerolog"
)

// simulatedTravelDuration and simulatedOperationDuration stand in for real
// motor/IO time; a real adapter would replace both with hardware round
// trips over its own transport.
const (
	simulatedTravelDuration    = 50 * time.Millisecond
	simulatedOperationDuration = 30 * time.Millisecond
)

// SimulatedAdapter drives one vehicle with no hardware backing it: each
// SendCommand spawns a goroutine that sleeps out a simulated travel time,
// reports the arrival position, then (if an operation was requested) sleeps
// out a simulated operation time before reporting completion: one goroutine
// per in-flight command, cancellable via a per-command channel.
type SimulatedAdapter struct {
	vehicleID int64
	reports   chan<- Report
	logger    zerolog.Logger

	mu     sync.Mutex
	cancel chan struct{}
}

// NewSimulatedAdapter returns a SimulatedAdapter for vehicleID that posts
// every report onto reports.
func NewSimulatedAdapter(vehicleID int64, reports chan<- Report) *SimulatedAdapter {
	logger := log.WithComponent("vehicle-sim").With().Int64("vehicle", vehicleID).Logger()
	return &SimulatedAdapter{
		vehicleID: vehicleID,
		reports:   reports,
		logger:    logger,
	}
}

// SendCommand executes step, optionally followed by operation, on its own
// goroutine. A command already in flight is cancelled first — the
// Dispatcher never issues more than one command at a time per vehicle, but
// cancelling defensively keeps this adapter safe even if it does.
func (a *SimulatedAdapter) SendCommand(step kerneltypes.Step, operation string) error {
	a.mu.Lock()
	if a.cancel != nil {
		close(a.cancel)
	}
	cancel := make(chan struct{})
	a.cancel = cancel
	a.mu.Unlock()

	go a.run(step, operation, cancel)
	return nil
}

// Abort cancels the in-flight command, if any, without emitting a report
// for it.
func (a *SimulatedAdapter) Abort() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		close(a.cancel)
		a.cancel = nil
	}
	return nil
}

func (a *SimulatedAdapter) run(step kerneltypes.Step, operation string, cancel chan struct{}) {
	if !a.sleep(simulatedTravelDuration, cancel) {
		return
	}
	a.emit(Report{VehicleID: a.vehicleID, Kind: ReportPosition, Position: step.DestinationPoint})

	if operation == "" {
		return
	}
	if !a.sleep(simulatedOperationDuration, cancel) {
		return
	}
	a.emit(Report{VehicleID: a.vehicleID, Kind: ReportOperationComplete})
}

func (a *SimulatedAdapter) sleep(d time.Duration, cancel chan struct{}) bool {
	select {
	case <-time.After(d):
		return true
	case <-cancel:
		a.logger.Debug().Msg("command cancelled before completion")
		return false
	}
}

func (a *SimulatedAdapter) emit(r Report) {
	select {
	case a.reports <- r:
	default:
		a.logger.Warn().Str("kind", string(r.Kind)).Msg("report channel full, dropping report")
	}
}
