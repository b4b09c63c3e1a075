package router

import (
	"sync"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/rs/zerolog"
)

// CostInfinity is returned by GetCosts when no route exists.
const CostInfinity int64 = -1

// ForbiddenPathPolicy reports whether vehicleID may never traverse path,
// independent of the path's own locked/velocity state. The zero value
// (nil) forbids nothing.
type ForbiddenPathPolicy func(vehicleID int64, path *kerneltypes.Path) bool

// Router computes least-cost routes for vehicles over the topology held in
// pool, using evaluator for per-step cost. A mutex-guarded struct with a
// zerolog.Logger field and metrics.Timer-wrapped hot paths.
type Router struct {
	mu        sync.RWMutex
	pool      *pool.Pool
	evaluator Evaluator
	forbidden ForbiddenPathPolicy
	logger    zerolog.Logger

	// adjacency[vehicleID] is the filtered graph usable by that vehicle,
	// as of the last UpdateRoutingTables call.
	adjacency map[int64]map[int64][]edge

	// selected[vehicleID] is that vehicle's currently selected route.
	selected map[int64]*kerneltypes.Route
}

// New creates a Router over p using evaluator for step cost.
func New(p *pool.Pool, evaluator Evaluator) *Router {
	return &Router{
		pool:      p,
		evaluator: evaluator,
		logger:    log.WithComponent("router"),
		adjacency: make(map[int64]map[int64][]edge),
		selected:  make(map[int64]*kerneltypes.Route),
	}
}

// SetForbiddenPathPolicy installs a per-vehicle path restriction, checked
// in addition to a path's own locked/velocity state.
func (r *Router) SetForbiddenPathPolicy(policy ForbiddenPathPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forbidden = policy
}

// UpdateRoutingTables rebuilds every vehicle's filtered graph from the
// pool's current topology. Must be called on entry to OPERATING and after
// any topology edit; calling it again with an unchanged topology produces
// an identical graph (idempotent), since it only reads pool state and a
// deterministic policy function.
func (r *Router) UpdateRoutingTables() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RoutingTableBuildDuration)

	paths := r.pool.ListPaths()
	vehicles := r.pool.ListVehicles()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.adjacency = make(map[int64]map[int64][]edge, len(vehicles))
	for _, v := range vehicles {
		graph := make(map[int64][]edge)
		for _, p := range paths {
			if r.forbidden != nil && r.forbidden(v.ID, p) {
				continue
			}
			if p.PassableForward() {
				graph[p.Source.ID] = append(graph[p.Source.ID], edge{
					path: p, source: p.Source.ID, destination: p.Destination.ID, forward: true,
				})
			}
			if p.PassableReverse() {
				graph[p.Destination.ID] = append(graph[p.Destination.ID], edge{
					path: p, source: p.Destination.ID, destination: p.Source.ID, forward: false,
				})
			}
		}
		r.adjacency[v.ID] = graph
	}

	r.logger.Debug().Int("vehicles", len(vehicles)).Int("paths", len(paths)).Msg("routing tables rebuilt")
	return nil
}

// graphFor returns vehicleID's filtered graph. A vehicle with no table yet
// (one created after the last rebuild) triggers an UpdateRoutingTables call
// first.
func (r *Router) graphFor(vehicleID int64) map[int64][]edge {
	r.mu.RLock()
	graph, ok := r.adjacency[vehicleID]
	r.mu.RUnlock()
	if ok {
		return graph
	}
	_ = r.UpdateRoutingTables()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adjacency[vehicleID]
}

// GetCosts returns the aggregate cost of the cheapest route for vehicle
// from source to dest, or CostInfinity if none exists.
func (r *Router) GetCosts(vehicleID, source, dest int64) int64 {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RouteComputeDuration)

	if source == dest {
		return 0
	}
	graph := r.graphFor(vehicleID)
	results := shortestPaths(source, graph, r.evaluator)
	cand, ok := results[dest]
	if !ok {
		metrics.RoutesUnreachableTotal.Inc()
		return CostInfinity
	}
	return cand.cost
}

// GetRoute returns the cheapest Route for vehicle from source to dest, or
// (nil, false) if none exists. Routing between identical endpoints
// returns a zero-cost, zero-step Route.
func (r *Router) GetRoute(vehicleID, source, dest int64) (*kerneltypes.Route, bool) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RouteComputeDuration)

	if source == dest {
		return &kerneltypes.Route{Steps: nil, Cost: 0}, true
	}
	graph := r.graphFor(vehicleID)
	results := shortestPaths(source, graph, r.evaluator)
	cand, ok := results[dest]
	if !ok {
		metrics.RoutesUnreachableTotal.Inc()
		return nil, false
	}
	return &kerneltypes.Route{Steps: cand.steps, Cost: cand.cost}, true
}

// GetDriveOrderRoutes attaches a concrete Route to each of orders' drive
// orders in sequence, chaining each leg's destination as the next leg's
// source. It fails with a NoRouteFound KernelError when any leg is
// unreachable.
func (r *Router) GetDriveOrderRoutes(vehicleID, source int64, orders []kerneltypes.DriveOrder, destinationPoint func(kerneltypes.Destination) (int64, error)) ([]kerneltypes.DriveOrder, error) {
	out := make([]kerneltypes.DriveOrder, len(orders))
	cursor := source
	for i, do := range orders {
		destPoint, err := destinationPoint(do.Destination)
		if err != nil {
			return nil, kerneltypes.NewKernelError(kerneltypes.ErrNoRouteFound, "drive order destination could not be resolved to a point", err)
		}
		route, ok := r.GetRoute(vehicleID, cursor, destPoint)
		if !ok {
			return nil, kerneltypes.NewKernelError(kerneltypes.ErrNoRouteFound, "no route for drive order leg", nil)
		}
		do.Route = route
		do.State = kerneltypes.DriveOrderPristine
		out[i] = do
		cursor = destPoint
	}
	return out, nil
}

// CheckRoutability returns the subset of vehicleIDs that can reach every
// destination in the order, in sequence, starting from each vehicle's own
// current position.
func (r *Router) CheckRoutability(vehicleIDs []int64, currentPosition map[int64]int64, destinations []int64) []int64 {
	var reachable []int64
	for _, vid := range vehicleIDs {
		cursor, ok := currentPosition[vid]
		if !ok {
			continue
		}
		ok = true
		for _, dest := range destinations {
			if r.GetCosts(vid, cursor, dest) == CostInfinity {
				ok = false
				break
			}
			cursor = dest
		}
		if ok {
			reachable = append(reachable, vid)
		}
	}
	return reachable
}

// SelectRoute records route as vehicleID's currently selected route, or
// clears it when route is nil.
func (r *Router) SelectRoute(vehicleID int64, route *kerneltypes.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if route == nil {
		delete(r.selected, vehicleID)
		return
	}
	r.selected[vehicleID] = route.Clone()
}

// GetSelectedRoutes returns a defensive copy of every vehicle's currently
// selected route.
func (r *Router) GetSelectedRoutes() map[int64]*kerneltypes.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]*kerneltypes.Route, len(r.selected))
	for vid, route := range r.selected {
		out[vid] = route.Clone()
	}
	return out
}

// GetTargetedPoints returns the set of every point id that appears in any
// vehicle's currently selected route, used by the recharge and parking
// strategies to avoid contended destinations.
func (r *Router) GetTargetedPoints() map[int64]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make(map[int64]bool)
	for _, route := range r.selected {
		for _, step := range route.Steps {
			targets[step.DestinationPoint.ID] = true
		}
	}
	return targets
}
