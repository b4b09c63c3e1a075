package dispatcher

import (
	"time"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/metrics"
)

// stepWithdraw is dispatch() step 2. An order not currently in flight is
// withdrawn immediately. An order a vehicle is actively driving stays
// flagged: finalizeWithdrawal runs instead from handleReport once the
// vehicle's current step completes — withdrawn at the next step boundary,
// in-flight operations are not interrupted mid-step.
func (d *Dispatcher) stepWithdraw() {
	for _, orderID := range d.pendingWithdrawals() {
		order, err := d.pool.GetOrder(orderID)
		if err != nil {
			d.clearWithdrawal(orderID)
			continue
		}
		if order.State.IsTerminal() {
			d.clearWithdrawal(orderID)
			continue
		}
		if order.ProcessingVehicle == nil {
			d.finalizeWithdrawal(order, nil)
			d.clearWithdrawal(orderID)
		}
		// else: vehicle is processing it; leave flagged for handleReport.
	}
}

// finalizeWithdrawal transitions order to WITHDRAWN, frees vehicle's
// resources if it was driving the order, and propagates WITHDRAWN down any
// wrapping sequence. Emits, in order: order-changed(WITHDRAWN),
// vehicle-changed(IDLE) if vehicle != nil, scheduler-changed, in that order.
func (d *Dispatcher) finalizeWithdrawal(order *kerneltypes.TransportOrder, v *kerneltypes.Vehicle) {
	now := time.Now()
	order.State = kerneltypes.OrderWithdrawn
	order.FinishedAt = &now
	if _, err := d.pool.UpdateOrder(order); err != nil {
		d.logger.Error().Err(err).Int64("order", order.ID).Msg("failed to persist withdrawn order")
	}
	metrics.OrdersWithdrawnTotal.Inc()

	if v != nil {
		d.resources.FreeAll(v.ID)
		d.router.SelectRoute(v.ID, nil)
		v.ProcState = kerneltypes.ProcIdle
		v.State = kerneltypes.VehicleIdle
		v.TransportOrder = nil
		v.DriveOrderIndex = 0
		v.AllocatedResources = nil
		if _, err := d.pool.UpdateVehicle(v); err != nil {
			d.logger.Error().Err(err).Int64("vehicle", v.ID).Msg("failed to persist idled vehicle")
		}
		d.clearStepIndex(v.ID)
	}

	d.broker.Publish(&events.Event{
		Type:    events.EventMessage,
		Message: "scheduler-changed",
	})

	d.propagateWithdrawal(order)
}

// propagateWithdrawal follows order's wrapping sequence, withdrawing every
// non-terminal successor in turn.
func (d *Dispatcher) propagateWithdrawal(order *kerneltypes.TransportOrder) {
	next := order.WrappingSequence
	for next != nil {
		successor, err := d.pool.GetOrder(next.ID)
		if err != nil || successor.State.IsTerminal() {
			return
		}
		if successor.ProcessingVehicle != nil {
			d.mu.Lock()
			d.withdrawals[successor.ID] = true
			d.mu.Unlock()
			return
		}
		d.finalizeWithdrawalUnwrapped(successor)
		next = successor.WrappingSequence
	}
}

// finalizeWithdrawalUnwrapped marks successor WITHDRAWN without
// re-triggering wrapping-sequence propagation (the caller, propagateWithdrawal,
// already walks the chain) and without a vehicle to free, since an order
// reached via propagation has no processing vehicle by construction.
func (d *Dispatcher) finalizeWithdrawalUnwrapped(successor *kerneltypes.TransportOrder) {
	now := time.Now()
	successor.State = kerneltypes.OrderWithdrawn
	successor.FinishedAt = &now
	if _, err := d.pool.UpdateOrder(successor); err != nil {
		d.logger.Error().Err(err).Int64("order", successor.ID).Msg("failed to persist withdrawn successor order")
	}
	metrics.OrdersWithdrawnTotal.Inc()
}
