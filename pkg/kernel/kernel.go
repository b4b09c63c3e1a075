package kernel

import (
	"sync"
	"time"

	"github.com/cuemby/agvkernel/pkg/dispatcher"
	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/cuemby/agvkernel/pkg/resources"
	"github.com/cuemby/agvkernel/pkg/router"
	"github.com/cuemby/agvkernel/pkg/strategy"
	"github.com/cuemby/agvkernel/pkg/vehicle"
	"github.com/rs/zerolog"
)

// EvaluatorKind selects which Route Evaluator the Router is built with.
type EvaluatorKind string

const (
	EvaluatorDistance        EvaluatorKind = "distance"
	EvaluatorTurnPenalty     EvaluatorKind = "turn-penalty"
	EvaluatorExplicitPenalty EvaluatorKind = "explicit-penalty"
	EvaluatorComposite       EvaluatorKind = "composite"
)

// Config holds every tuning knob the CLI exposes.
type Config struct {
	// DataDir is where a persisted topology model is read from and, if
	// the kernel supports writing one back, saved to.
	DataDir string
	// LogLevel configures the global logger (pkg/log).
	LogLevel log.Level
	// ArchivalHorizon is how long a terminal transport order survives
	// before the Dispatcher's garbage collection sweeps it.
	ArchivalHorizon time.Duration
	// DispatchTickInterval is how often a dispatch pass runs absent an
	// incoming vehicle report.
	DispatchTickInterval time.Duration
	// Evaluator selects the Router's cost function.
	Evaluator EvaluatorKind
	// TurnPenalty is the constant added by the turn-penalty evaluator (and
	// folded into the composite evaluator) for a change in travel
	// orientation between consecutive steps.
	TurnPenalty int64
	// CompositeWeights, when Evaluator is EvaluatorComposite, weights
	// [distance, turn-penalty, explicit-penalty] in that order.
	CompositeWeights [3]float64
	// RemoteEventQueueCapacity bounds each remote poll subscriber's ring
	// buffer.
	RemoteEventQueueCapacity int
	// VehicleReportBufferSize bounds the shared vehicle-report channel.
	VehicleReportBufferSize int
}

// DefaultConfig returns sensible defaults for a simulated deployment.
func DefaultConfig() Config {
	return Config{
		DataDir:                  ".",
		LogLevel:                 log.InfoLevel,
		ArchivalHorizon:          24 * time.Hour,
		DispatchTickInterval:     2 * time.Second,
		Evaluator:                EvaluatorDistance,
		TurnPenalty:              7,
		CompositeWeights:         [3]float64{1, 1, 1},
		RemoteEventQueueCapacity: 256,
		VehicleReportBufferSize:  256,
	}
}

// Kernel wires every core component together and enforces the
// MODELLING/OPERATING/SHUTDOWN state machine.
type Kernel struct {
	cfg Config

	mu    sync.Mutex
	state State

	Pool       *pool.Pool
	Router     *router.Router
	Resources  *resources.Manager
	Broker     *events.Broker
	Vehicles   *vehicle.Registry
	Recharge   *strategy.RechargeStrategy
	Parking    *strategy.ParkingStrategy
	Dispatcher *dispatcher.Dispatcher

	logger zerolog.Logger
}

// New builds a Kernel in MODELLING state with every subsystem wired
// together over a fresh, empty Pool.
func New(cfg Config) (*Kernel, error) {
	evaluator, err := buildEvaluator(cfg)
	if err != nil {
		return nil, err
	}

	broker := events.NewBroker()
	p := pool.New(broker)
	r := router.New(p, evaluator)
	rm := resources.New()
	vehicles := vehicle.NewRegistry(cfg.VehicleReportBufferSize)
	recharge := strategy.NewRechargeStrategy(p, r)
	parking := strategy.NewParkingStrategy(p, r)

	dcfg := dispatcher.Config{
		TickInterval:    cfg.DispatchTickInterval,
		ArchivalHorizon: cfg.ArchivalHorizon,
	}
	disp := dispatcher.New(dcfg, p, r, rm, broker, vehicles, recharge, parking)

	k := &Kernel{
		cfg:        cfg,
		state:      StateModelling,
		Pool:       p,
		Router:     r,
		Resources:  rm,
		Broker:     broker,
		Vehicles:   vehicles,
		Recharge:   recharge,
		Parking:    parking,
		Dispatcher: disp,
		logger:     log.WithComponent("kernel"),
	}
	return k, nil
}

func buildEvaluator(cfg Config) (router.Evaluator, error) {
	switch cfg.Evaluator {
	case "", EvaluatorDistance:
		return router.NewDistanceEvaluator(), nil
	case EvaluatorTurnPenalty:
		return router.NewTurnPenaltyEvaluator(cfg.TurnPenalty)
	case EvaluatorExplicitPenalty:
		return router.NewExplicitPenaltyEvaluator(), nil
	case EvaluatorComposite:
		turn, err := router.NewTurnPenaltyEvaluator(cfg.TurnPenalty)
		if err != nil {
			return nil, err
		}
		evaluators := []router.Evaluator{router.NewDistanceEvaluator(), turn, router.NewExplicitPenaltyEvaluator()}
		return router.NewCompositeEvaluator(evaluators, cfg.CompositeWeights[:])
	default:
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrUnsupportedOperation, "unknown evaluator kind: "+string(cfg.Evaluator), nil)
	}
}

// State returns the kernel's current top-level mode.
func (k *Kernel) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *Kernel) setState(s State) {
	k.mu.Lock()
	k.state = s
	k.mu.Unlock()

	k.Broker.Publish(&events.Event{
		Type:    events.EventKernelStateChanged,
		Message: string(s),
	})
}

// RequireState returns an IllegalStateTransition KernelError unless the
// kernel is currently in want, for gating operations that are only legal
// in one state (e.g. editing topology only in MODELLING, creating orders
// only in OPERATING).
func (k *Kernel) RequireState(want State) error {
	if k.State() != want {
		return kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition,
			"operation requires state "+string(want)+", kernel is "+string(k.State()), nil)
	}
	return nil
}

// EnterOperating transitions MODELLING -> OPERATING. Requires a non-empty,
// frozen topology; rebuilds routing tables, installs the resource
// manager's block definitions, starts the Dispatcher, and runs one full
// dispatch pass before returning.
func (k *Kernel) EnterOperating() error {
	if !legalTransition(k.State(), StateOperating) {
		return kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition, "EnterOperating requires MODELLING", nil)
	}
	if len(k.Pool.ListPoints()) == 0 {
		return kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition, "cannot enter OPERATING with an empty topology", nil)
	}

	k.Resources.SetBlocks(k.Pool.ListBlocks())
	if err := k.Router.UpdateRoutingTables(); err != nil {
		return err
	}

	k.setState(StateOperating)
	k.Dispatcher.Start()

	if err := k.Dispatcher.Dispatch(); err != nil {
		k.logger.Error().Err(err).Msg("initial dispatch pass on entering OPERATING failed")
	}
	return nil
}

// EnterModelling transitions OPERATING -> MODELLING. Requires every
// vehicle IDLE and no transport order in a non-terminal state; stops the
// Dispatcher and clears the topology (vehicles and archived orders
// survive).
func (k *Kernel) EnterModelling() error {
	if !legalTransition(k.State(), StateModelling) {
		return kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition, "EnterModelling requires OPERATING", nil)
	}
	for _, v := range k.Pool.ListVehicles() {
		if v.State != kerneltypes.VehicleIdle || v.ProcState != kerneltypes.ProcIdle {
			return kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition, "cannot leave OPERATING while vehicle "+v.Name+" is not idle", nil)
		}
	}
	for _, o := range k.Pool.ListOrders() {
		if !o.State.IsTerminal() {
			return kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition, "cannot leave OPERATING while order "+o.Name+" is not terminal", nil)
		}
	}

	k.Dispatcher.Stop()
	k.Pool.Clear()
	k.setState(StateModelling)
	return nil
}

// Shutdown transitions unconditionally to SHUTDOWN; it is terminal. Safe
// to call from any state, including SHUTDOWN itself (idempotent).
func (k *Kernel) Shutdown() {
	if !legalTransition(k.State(), StateShutdown) {
		return
	}
	if k.State() == StateOperating {
		k.Dispatcher.Stop()
	}
	k.setState(StateShutdown)
}

// CreateTransportOrder is the external order-intake entry point: only
// legal while OPERATING.
func (k *Kernel) CreateTransportOrder(o *kerneltypes.TransportOrder) (*kerneltypes.TransportOrder, error) {
	if err := k.RequireState(StateOperating); err != nil {
		return nil, err
	}
	if len(o.DriveOrders) == 0 {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition, "transport order must have at least one drive order", nil)
	}
	if o.State == "" {
		o.State = kerneltypes.OrderRaw
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	return k.Pool.CreateOrder(o)
}

// WithdrawOrder flags a transport order for withdrawal; the Dispatcher
// honours the flag at the next step boundary.
func (k *Kernel) WithdrawOrder(orderID int64) error {
	if err := k.RequireState(StateOperating); err != nil {
		return err
	}
	k.Dispatcher.RequestWithdraw(orderID)
	return nil
}
