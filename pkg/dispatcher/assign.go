package dispatcher

import (
	"sort"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/cuemby/agvkernel/pkg/router"
)

// stepAssign is dispatch() steps 4-6: match available orders to available
// vehicles, choose the best candidate by the selection policy below, then
// route and hand off the order.
func (d *Dispatcher) stepAssign() {
	orders := d.pool.ListOrders()
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	available := d.availableVehicles()

	dependencyTerminal := func(ref kerneltypes.Ref) bool {
		dep, err := d.pool.GetOrder(ref.ID)
		if err != nil {
			return true
		}
		return dep.State.IsTerminal()
	}

	for _, order := range orders {
		if order.ProcessingVehicle != nil || !order.IsAvailable(dependencyTerminal) {
			continue
		}

		destPoints, err := d.destinationPoints(order)
		if err != nil {
			d.logger.Debug().Int64("order", order.ID).Err(err).Msg("order destinations not resolvable yet")
			continue
		}

		chosen, ok := d.selectVehicle(order, available, destPoints)
		if !ok {
			continue
		}

		if err := d.assignOrderToVehicle(order, chosen); err != nil {
			d.logger.Warn().Int64("order", order.ID).Int64("vehicle", chosen.ID).Err(err).Msg("assignment failed, order remains available")
			continue
		}

		available = removeVehicle(available, chosen.ID)
	}
}

// availableVehicles returns every vehicle eligible for a fresh assignment:
// idle proc-state, idle physical state, energy above its critical
// threshold, and not locked.
func (d *Dispatcher) availableVehicles() []*kerneltypes.Vehicle {
	var out []*kerneltypes.Vehicle
	for _, v := range d.pool.ListVehicles() {
		if v.ProcState != kerneltypes.ProcIdle || v.State != kerneltypes.VehicleIdle {
			continue
		}
		if v.Locked || v.IsCriticallyLow() {
			continue
		}
		if v.CurrentPosition == nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func removeVehicle(vehicles []*kerneltypes.Vehicle, id int64) []*kerneltypes.Vehicle {
	out := vehicles[:0]
	for _, v := range vehicles {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}

// destinationPoints resolves every drive order's Destination to a concrete
// point id, in order.
func (d *Dispatcher) destinationPoints(order *kerneltypes.TransportOrder) ([]int64, error) {
	points := make([]int64, len(order.DriveOrders))
	for i, do := range order.DriveOrders {
		p, err := d.resolveDestinationPoint(do.Destination)
		if err != nil {
			return nil, err
		}
		points[i] = p
	}
	return points, nil
}

// resolveDestinationPoint maps a Destination to the point a vehicle must
// route to: directly, if it names a bare point; otherwise via one of the
// named location's links that allows the requested operation.
func (d *Dispatcher) resolveDestinationPoint(dest kerneltypes.Destination) (int64, error) {
	if dest.Location.Class == kerneltypes.ClassPoint {
		return dest.Location.ID, nil
	}

	loc, err := d.pool.GetLocation(dest.Location.ID)
	if err != nil {
		return 0, err
	}
	locType, err := d.pool.GetLocationType(loc.Type.ID)
	if err != nil {
		return 0, err
	}
	for _, link := range loc.Links {
		if link.Allows(dest.Operation, locType) {
			return link.Point.ID, nil
		}
	}
	if len(loc.Links) > 0 {
		return loc.Links[0].Point.ID, nil
	}
	return 0, kerneltypes.NewKernelError(kerneltypes.ErrNoRouteFound, "location has no links", nil)
}

// selectVehicle applies dispatch() step 5: prefer the order's intended
// vehicle if available and reachable, else the reachable candidate with
// lowest total route cost, ties broken by lowest vehicle id.
func (d *Dispatcher) selectVehicle(order *kerneltypes.TransportOrder, candidates []*kerneltypes.Vehicle, destPoints []int64) (*kerneltypes.Vehicle, bool) {
	type scored struct {
		vehicle *kerneltypes.Vehicle
		cost    int64
	}
	var reachable []scored

	for _, v := range candidates {
		cost, ok := d.routeCost(v.ID, v.CurrentPosition.ID, destPoints)
		if !ok {
			continue
		}
		reachable = append(reachable, scored{vehicle: v, cost: cost})
	}
	if len(reachable) == 0 {
		return nil, false
	}

	if order.IntendedVehicle != nil {
		for _, r := range reachable {
			if r.vehicle.ID == order.IntendedVehicle.ID {
				return r.vehicle, true
			}
		}
	}

	best := reachable[0]
	for _, r := range reachable[1:] {
		if r.cost < best.cost || (r.cost == best.cost && r.vehicle.ID < best.vehicle.ID) {
			best = r
		}
	}
	return best.vehicle, true
}

// routeCost sums the route cost for vehicleID to visit destPoints in
// sequence starting from start, or (0, false) if any leg is unreachable.
func (d *Dispatcher) routeCost(vehicleID, start int64, destPoints []int64) (int64, bool) {
	var total int64
	cursor := start
	for _, dest := range destPoints {
		cost := d.router.GetCosts(vehicleID, cursor, dest)
		if cost == router.CostInfinity {
			return 0, false
		}
		total += cost
		cursor = dest
	}
	return total, true
}

// assignOrderToVehicle is dispatch() step 6: route the order, claim the
// first step's resources, and hand off the first command.
func (d *Dispatcher) assignOrderToVehicle(order *kerneltypes.TransportOrder, v *kerneltypes.Vehicle) error {
	destinationFor := func(dest kerneltypes.Destination) (int64, error) {
		return d.resolveDestinationPoint(dest)
	}

	routed, err := d.router.GetDriveOrderRoutes(v.ID, v.CurrentPosition.ID, order.DriveOrders, destinationFor)
	if err != nil {
		return err
	}

	order.DriveOrders = routed
	order.State = kerneltypes.OrderBeingProcessed
	vehicleRef := v.Ref()
	order.ProcessingVehicle = &vehicleRef
	if _, err := d.pool.UpdateOrder(order); err != nil {
		return err
	}

	orderRef := order.Ref()
	v.TransportOrder = &orderRef
	v.DriveOrderIndex = 0
	v.ProcState = kerneltypes.ProcAwaitingOrder
	if _, err := d.pool.UpdateVehicle(v); err != nil {
		return err
	}

	return d.beginDriveOrder(v, order, 0)
}

// beginDriveOrder claims the first step's resources for order's drive
// order at index, and once granted sends the vehicle its first command.
// If the route has zero steps (vehicle already at the destination), it
// finishes the drive order immediately instead.
func (d *Dispatcher) beginDriveOrder(v *kerneltypes.Vehicle, order *kerneltypes.TransportOrder, index int) error {
	do, ok := order.CurrentDriveOrder(index)
	if !ok {
		return kerneltypes.NewKernelError(kerneltypes.ErrIllegalStateTransition, "no drive order at index", nil)
	}
	if do.Route == nil || len(do.Route.Steps) == 0 {
		d.finishDriveOrderAt(v.ID)
		return nil
	}

	d.setStepIndex(v.ID, 0)
	first := do.Route.Steps[0]
	claim := stepResourceSet(*v.CurrentPosition, first)

	d.resources.AllocateAhead(v.ID, claim, func(granted kerneltypes.ResourceSet) {
		vv, err := d.pool.GetVehicle(v.ID)
		if err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("vehicle disappeared before first step grant")
			return
		}
		vv.AllocatedResources = []kerneltypes.ResourceSet{granted}
		vv.ProcState = kerneltypes.ProcProcessingOrder
		vv.State = kerneltypes.VehicleExecuting
		if _, err := d.pool.UpdateVehicle(vv); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist vehicle after first step grant")
			return
		}
		d.router.SelectRoute(v.ID, do.Route)
		operation := ""
		if len(do.Route.Steps) == 1 {
			operation = do.Destination.Operation
		}
		if err := d.vehicles.SendCommand(v.ID, first, operation); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to send first step command")
			return
		}
		metrics.OrdersAssignedTotal.Inc()
	})
	return nil
}

// stepResourceSet is the claim a vehicle needs to traverse step: the point
// it currently occupies (held until the move completes), the path it is
// about to traverse, and the point it is moving to.
func stepResourceSet(current kerneltypes.Ref, step kerneltypes.Step) kerneltypes.ResourceSet {
	return kerneltypes.ResourceSet{current, step.Path, step.DestinationPoint}
}
