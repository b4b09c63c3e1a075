package vehicle

import (
	"fmt"
	"sync"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/rs/zerolog"
)

// Registry owns one Adapter per vehicle and fans their reports into a
// single channel, giving the Dispatcher a single drain point while
// preserving per-vehicle FIFO order (each adapter only ever has one
// in-flight command, so its reports can never reorder relative to each
// other).
type Registry struct {
	mu       sync.RWMutex
	adapters map[int64]Adapter
	reports  chan Report
	logger   zerolog.Logger
}

// NewRegistry creates a Registry whose shared report channel buffers up to
// capacity reports before SimulatedAdapter.emit starts dropping them.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 1
	}
	return &Registry{
		adapters: make(map[int64]Adapter),
		reports:  make(chan Report, capacity),
		logger:   log.WithComponent("vehicle-registry"),
	}
}

// RegisterSimulated creates and registers a SimulatedAdapter for vehicleID,
// replacing any adapter already registered for it.
func (r *Registry) RegisterSimulated(vehicleID int64) *SimulatedAdapter {
	adapter := NewSimulatedAdapter(vehicleID, r.reports)
	r.Register(vehicleID, adapter)
	return adapter
}

// Register installs adapter as vehicleID's communication adapter.
func (r *Registry) Register(vehicleID int64, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[vehicleID] = adapter
}

// Unregister removes vehicleID's adapter, if any.
func (r *Registry) Unregister(vehicleID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, vehicleID)
}

// Get returns vehicleID's registered adapter, if any.
func (r *Registry) Get(vehicleID int64) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[vehicleID]
	return a, ok
}

// SendCommand forwards step/operation to vehicleID's adapter.
func (r *Registry) SendCommand(vehicleID int64, step kerneltypes.Step, operation string) error {
	adapter, ok := r.Get(vehicleID)
	if !ok {
		return kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, fmt.Sprintf("no adapter registered for vehicle %d", vehicleID), nil)
	}
	return adapter.SendCommand(step, operation)
}

// Abort forwards an abort request to vehicleID's adapter.
func (r *Registry) Abort(vehicleID int64) error {
	adapter, ok := r.Get(vehicleID)
	if !ok {
		return nil
	}
	return adapter.Abort()
}

// Reports returns the channel the Dispatcher drains every adapter's
// asynchronous callbacks from.
func (r *Registry) Reports() <-chan Report {
	return r.reports
}
