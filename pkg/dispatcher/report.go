package dispatcher

import (
	"time"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/cuemby/agvkernel/pkg/vehicle"
)

// handleReport is the per-vehicle progression logic driven by a vehicle
// communication adapter's asynchronous callback: position reports advance
// the route step by step, an operation-complete report
// finishes the current drive order's operating phase, a state/energy
// report just updates the vehicle record, and an error report fails the
// order and frees the vehicle.
func (d *Dispatcher) handleReport(r vehicle.Report) {
	v, err := d.pool.GetVehicle(r.VehicleID)
	if err != nil {
		d.logger.Warn().Int64("vehicle", r.VehicleID).Err(err).Msg("report for unknown vehicle")
		return
	}

	switch r.Kind {
	case vehicle.ReportPosition:
		d.handlePositionReport(v, r.Position)
	case vehicle.ReportState:
		v.State = r.State
		if _, err := d.pool.UpdateVehicle(v); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist vehicle state report")
		}
	case vehicle.ReportEnergy:
		v.Energy = r.Energy
		if _, err := d.pool.UpdateVehicle(v); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist vehicle energy report")
		}
	case vehicle.ReportOperationComplete:
		d.handleOperationComplete(v)
	case vehicle.ReportError:
		d.handleErrorReport(v, r.ErrorKind, r.ErrorMessage)
	}
}

// handlePositionReport updates point occupancy and the vehicle's current
// position, then either advances to the route's next step or, if the
// route is exhausted and the drive order has no operating phase, finishes
// the drive order.
func (d *Dispatcher) handlePositionReport(v *kerneltypes.Vehicle, arrived kerneltypes.Ref) {
	d.updateOccupancy(v, arrived)

	v.CurrentPosition = &arrived
	v.NextPosition = nil
	if _, err := d.pool.UpdateVehicle(v); err != nil {
		d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist vehicle position report")
		return
	}

	if v.TransportOrder == nil {
		return
	}
	order, err := d.pool.GetOrder(v.TransportOrder.ID)
	if err != nil {
		d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("vehicle references unknown order")
		return
	}
	do, ok := order.CurrentDriveOrder(v.DriveOrderIndex)
	if !ok || do.Route == nil {
		return
	}

	arrivedStep := d.stepIndexFor(v.ID)
	nextStep := arrivedStep + 1

	if nextStep >= len(do.Route.Steps) {
		if do.Destination.Operation == "" {
			d.finishDriveOrderAt(v.ID)
		}
		// else: operation was attached to the last SendCommand already;
		// wait for ReportOperationComplete.
		return
	}

	d.advanceToStep(v, order, do, nextStep)
}

// updateOccupancy clears the vehicle's previous point occupancy and marks
// it occupying arrived, preserving the invariant that at most one vehicle
// occupies a point at any instant.
func (d *Dispatcher) updateOccupancy(v *kerneltypes.Vehicle, arrived kerneltypes.Ref) {
	if v.CurrentPosition != nil {
		if prev, err := d.pool.GetPoint(v.CurrentPosition.ID); err == nil && prev.OccupyingVehicle != nil && prev.OccupyingVehicle.ID == v.ID {
			prev.OccupyingVehicle = nil
			if _, err := d.pool.UpdatePoint(prev); err != nil {
				d.logger.Warn().Err(err).Int64("point", prev.ID).Msg("failed to clear previous point occupancy")
			}
		}
	}
	if next, err := d.pool.GetPoint(arrived.ID); err == nil {
		ref := v.Ref()
		next.OccupyingVehicle = &ref
		if _, err := d.pool.UpdatePoint(next); err != nil {
			d.logger.Warn().Err(err).Int64("point", next.ID).Msg("failed to set new point occupancy")
		}
	}
}

// advanceToStep claims resources for do.Route.Steps[stepIdx] ahead of
// freeing whatever the vehicle no longer needs, then sends the vehicle
// the next command. operation is attached only when
// stepIdx is the route's last step.
func (d *Dispatcher) advanceToStep(v *kerneltypes.Vehicle, order *kerneltypes.TransportOrder, do *kerneltypes.DriveOrder, stepIdx int) {
	step := do.Route.Steps[stepIdx]
	claim := stepResourceSet(*v.CurrentPosition, step)

	d.resources.AllocateAhead(v.ID, claim, func(granted kerneltypes.ResourceSet) {
		vv, err := d.pool.GetVehicle(v.ID)
		if err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("vehicle disappeared before step grant")
			return
		}

		previouslyHeld := vv.AllocatedUnion()
		toFree := make(kerneltypes.ResourceSet, 0, len(previouslyHeld))
		for _, r := range previouslyHeld {
			if !claim.Contains(r) {
				toFree = append(toFree, r)
			}
		}
		if len(toFree) > 0 {
			d.resources.Free(v.ID, toFree)
		}

		vv.AllocatedResources = []kerneltypes.ResourceSet{granted}
		if _, err := d.pool.UpdateVehicle(vv); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist vehicle after step grant")
			return
		}
		d.setStepIndex(v.ID, stepIdx)

		operation := ""
		if stepIdx == len(do.Route.Steps)-1 {
			operation = do.Destination.Operation
		}
		if err := d.vehicles.SendCommand(v.ID, step, operation); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to send step command")
		}
	})
}

// finishDriveOrderAt marks the vehicle's current drive order FINISHED and
// either begins the next one or, if it was the last, finishes the
// transport order. Honours a pending withdrawal at this step boundary.
func (d *Dispatcher) finishDriveOrderAt(vehicleID int64) {
	v, err := d.pool.GetVehicle(vehicleID)
	if err != nil {
		return
	}
	if v.TransportOrder == nil {
		return
	}
	order, err := d.pool.GetOrder(v.TransportOrder.ID)
	if err != nil {
		return
	}
	do, ok := order.CurrentDriveOrder(v.DriveOrderIndex)
	if !ok {
		return
	}
	do.State = kerneltypes.DriveOrderFinished
	order.DriveOrders[v.DriveOrderIndex] = *do

	if _, err := d.pool.UpdateOrder(order); err != nil {
		d.logger.Error().Err(err).Int64("order", order.ID).Msg("failed to persist finished drive order")
		return
	}

	// Shrink the vehicle's claim down to the point it now occupies; the
	// path just traversed and any point behind it are no longer needed.
	if v.CurrentPosition != nil {
		held := v.AllocatedUnion()
		var toFree kerneltypes.ResourceSet
		for _, r := range held {
			if !r.Equal(*v.CurrentPosition) {
				toFree = append(toFree, r)
			}
		}
		if len(toFree) > 0 {
			d.resources.Free(v.ID, toFree)
		}
		v.AllocatedResources = []kerneltypes.ResourceSet{{*v.CurrentPosition}}
	}

	if d.isWithdrawalPending(order.ID) {
		d.clearWithdrawal(order.ID)
		d.finalizeWithdrawal(order, v)
		return
	}

	next := v.DriveOrderIndex + 1
	if next < len(order.DriveOrders) {
		v.DriveOrderIndex = next
		if _, err := d.pool.UpdateVehicle(v); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist vehicle drive-order advance")
			return
		}
		if err := d.beginDriveOrder(v, order, next); err != nil {
			d.logger.Error().Err(err).Int64("order", order.ID).Msg("failed to begin next drive order")
		}
		return
	}

	d.finishTransportOrder(v, order)
}

// finishTransportOrder marks order FINISHED and returns v to IDLE.
func (d *Dispatcher) finishTransportOrder(v *kerneltypes.Vehicle, order *kerneltypes.TransportOrder) {
	now := time.Now()
	order.State = kerneltypes.OrderFinished
	order.FinishedAt = &now
	if _, err := d.pool.UpdateOrder(order); err != nil {
		d.logger.Error().Err(err).Int64("order", order.ID).Msg("failed to persist finished order")
		return
	}
	metrics.OrdersFinishedTotal.Inc()

	v.ProcState = kerneltypes.ProcIdle
	v.State = kerneltypes.VehicleIdle
	v.TransportOrder = nil
	v.DriveOrderIndex = 0
	if _, err := d.pool.UpdateVehicle(v); err != nil {
		d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist idled vehicle")
	}
	d.router.SelectRoute(v.ID, nil)
	d.clearStepIndex(v.ID)
}

// handleOperationComplete finishes the drive order whose OPERATING phase
// just completed.
func (d *Dispatcher) handleOperationComplete(v *kerneltypes.Vehicle) {
	d.finishDriveOrderAt(v.ID)
}

// handleErrorReport fails the vehicle's current drive order and transport
// order, frees every resource it holds, and propagates withdrawal down any
// wrapping sequence successor.
func (d *Dispatcher) handleErrorReport(v *kerneltypes.Vehicle, kind kerneltypes.ErrorKind, message string) {
	v.State = kerneltypes.VehicleError
	d.resources.FreeAll(v.ID)
	d.router.SelectRoute(v.ID, nil)
	d.clearStepIndex(v.ID)

	if v.TransportOrder != nil {
		order, err := d.pool.GetOrder(v.TransportOrder.ID)
		if err == nil && !order.State.IsTerminal() {
			if do, ok := order.CurrentDriveOrder(v.DriveOrderIndex); ok {
				do.State = kerneltypes.DriveOrderFailed
				order.DriveOrders[v.DriveOrderIndex] = *do
			}
			now := time.Now()
			order.State = kerneltypes.OrderFailed
			order.FinishedAt = &now
			if _, err := d.pool.UpdateOrder(order); err != nil {
				d.logger.Error().Err(err).Int64("order", order.ID).Msg("failed to persist failed order")
			}
			metrics.OrdersFailedTotal.Inc()
			d.propagateWithdrawal(order)
		}
	}

	v.ProcState = kerneltypes.ProcIdle
	v.TransportOrder = nil
	v.DriveOrderIndex = 0
	v.AllocatedResources = nil
	if _, err := d.pool.UpdateVehicle(v); err != nil {
		d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist errored vehicle")
	}

	d.broker.Publish(&events.Event{
		Type:        events.EventMessage,
		Message:     "vehicle " + v.Name + " reported error: " + message,
		ObjectClass: string(kind),
	})
}
