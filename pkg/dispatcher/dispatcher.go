package dispatcher

import (
	"sync"
	"time"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/cuemby/agvkernel/pkg/resources"
	"github.com/cuemby/agvkernel/pkg/router"
	"github.com/cuemby/agvkernel/pkg/strategy"
	"github.com/cuemby/agvkernel/pkg/vehicle"
	"github.com/rs/zerolog"
)

// Config holds dispatcher tuning knobs.
type Config struct {
	// TickInterval is how often a dispatch pass runs even with no reports
	// pending (catches newly created orders, freshly idle vehicles, etc).
	TickInterval time.Duration
	// ArchivalHorizon is how long a terminal transport order is retained
	// before garbage collection.
	ArchivalHorizon time.Duration
}

// DefaultConfig returns a tick cadence suited to the kernel's decision loop.
func DefaultConfig() Config {
	return Config{
		TickInterval:    2 * time.Second,
		ArchivalHorizon: 24 * time.Hour,
	}
}

// Dispatcher is the kernel's dispatch loop: a single ticking goroutine,
// guarded by a mutex, with a start/stop channel, that matches orders to
// vehicles and drives each vehicle's drive orders to completion.
type Dispatcher struct {
	cfg Config

	pool      *pool.Pool
	router    *router.Router
	resources *resources.Manager
	broker    *events.Broker
	vehicles  *vehicle.Registry
	recharge  *strategy.RechargeStrategy
	parking   *strategy.ParkingStrategy

	logger zerolog.Logger

	mu          sync.Mutex
	progress    map[int64]int // vehicleID -> index of the step currently in flight for that vehicle
	withdrawals map[int64]bool
	stopCh      chan struct{}
}

// New builds a Dispatcher over the given subsystems. recharge and parking
// may be nil, in which case steps 7 and 8 of dispatch() are skipped.
func New(cfg Config, p *pool.Pool, r *router.Router, rm *resources.Manager, broker *events.Broker, vehicles *vehicle.Registry, recharge *strategy.RechargeStrategy, parking *strategy.ParkingStrategy) *Dispatcher {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	return &Dispatcher{
		cfg:         cfg,
		pool:        p,
		router:      r,
		resources:   rm,
		broker:      broker,
		vehicles:    vehicles,
		recharge:    recharge,
		parking:     parking,
		logger:      log.WithComponent("dispatcher"),
		progress:    make(map[int64]int),
		withdrawals: make(map[int64]bool),
	}
}

// Start begins the dispatcher's single worker goroutine. The dispatcher may
// be started again after Stop (the kernel does this when it re-enters
// OPERATING after a modelling session).
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.stopCh != nil {
		d.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	d.stopCh = stopCh
	d.mu.Unlock()

	go d.run(stopCh)
}

// Stop stops the dispatcher's worker goroutine. Safe to call when not
// running.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopCh != nil {
		close(d.stopCh)
		d.stopCh = nil
	}
}

// run is the single thread that serialises every dispatch pass and every
// vehicle report; the dispatcher runs on one thread and processes one
// dispatch() pass at a time.
func (d *Dispatcher) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	d.logger.Info().Msg("dispatcher started")

	for {
		select {
		case r := <-d.vehicles.Reports():
			d.handleReport(r)
			if err := d.Dispatch(); err != nil {
				d.logger.Error().Err(err).Msg("dispatch pass failed after report")
			}
		case <-ticker.C:
			if err := d.Dispatch(); err != nil {
				d.logger.Error().Err(err).Msg("dispatch pass failed")
			}
		case <-stopCh:
			d.logger.Info().Msg("dispatcher stopped")
			return
		}
	}
}

// RequestWithdraw flags orderID for withdrawal; the flag is honoured at
// the next step boundary.
func (d *Dispatcher) RequestWithdraw(orderID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.withdrawals[orderID] = true
}

func (d *Dispatcher) isWithdrawalPending(orderID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.withdrawals[orderID]
}

func (d *Dispatcher) clearWithdrawal(orderID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.withdrawals, orderID)
}

func (d *Dispatcher) pendingWithdrawals() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int64, 0, len(d.withdrawals))
	for id := range d.withdrawals {
		out = append(out, id)
	}
	return out
}

func (d *Dispatcher) stepIndexFor(vehicleID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress[vehicleID]
}

func (d *Dispatcher) setStepIndex(vehicleID int64, idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress[vehicleID] = idx
}

func (d *Dispatcher) clearStepIndex(vehicleID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.progress, vehicleID)
}

// Dispatch runs one dispatch pass: garbage-collect terminal orders, honour
// withdrawal flags, assign available orders to available vehicles, and send
// idle vehicles to recharge or park. Finishing orders is not a pass step —
// it is push-driven, happening in handleReport/finishDriveOrderAt the
// moment a vehicle reports its last step complete, before run() triggers
// the next pass. Exported so tests and the kernel's OPERATING-entry
// transition can invoke it synchronously without waiting on the ticker.
func (d *Dispatcher) Dispatch() error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.DispatchCycleDuration)
		metrics.DispatchCyclesTotal.Inc()
	}()

	d.stepGarbageCollect()
	d.stepWithdraw()
	d.stepAssign()
	d.stepRecharge()
	d.stepPark()
	return nil
}
