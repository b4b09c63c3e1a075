package dispatcher

import (
	"time"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
)

// stepRecharge is dispatch() step 7: vehicles idle with critically low
// energy get a synthetic recharge order from the Recharge Strategy.
func (d *Dispatcher) stepRecharge() {
	if d.recharge == nil {
		return
	}
	for _, v := range d.pool.ListVehicles() {
		if v.ProcState != kerneltypes.ProcIdle || v.State != kerneltypes.VehicleIdle {
			continue
		}
		if !v.IsCriticallyLow() {
			continue
		}
		loc, err := d.recharge.Select(v)
		if err != nil {
			d.logger.Debug().Int64("vehicle", v.ID).Err(err).Msg("recharge strategy could not run")
			continue
		}
		if loc == nil {
			continue
		}
		if err := d.assignSyntheticOrder(v, kerneltypes.Destination{Location: loc.Ref(), Operation: v.RechargeOperation}, "recharge-"+v.Name); err != nil {
			d.logger.Warn().Int64("vehicle", v.ID).Err(err).Msg("failed to assign recharge order")
		}
	}
}

// stepPark is dispatch() step 8: vehicles idle with no pending work and
// energy above their critical threshold get a synthetic parking order from the Parking Strategy, if
// one is configured.
func (d *Dispatcher) stepPark() {
	if d.parking == nil {
		return
	}
	for _, v := range d.pool.ListVehicles() {
		if v.ProcState != kerneltypes.ProcIdle || v.State != kerneltypes.VehicleIdle {
			continue
		}
		if v.IsCriticallyLow() {
			continue // recharge takes priority; handled by stepRecharge
		}
		if v.CurrentPosition == nil {
			continue
		}
		point, err := d.parking.Select(v)
		if err != nil {
			d.logger.Debug().Int64("vehicle", v.ID).Err(err).Msg("parking strategy could not run")
			continue
		}
		if point == nil || point.ID == v.CurrentPosition.ID {
			continue // already parked, or nowhere free to go
		}
		if err := d.assignSyntheticOrder(v, kerneltypes.Destination{Location: point.Ref()}, "park-"+v.Name); err != nil {
			d.logger.Warn().Int64("vehicle", v.ID).Err(err).Msg("failed to assign parking order")
		}
	}
}

// assignSyntheticOrder creates a single-drive-order TransportOrder intended
// for v and routes/assigns it immediately, bypassing the ordinary
// competitive selection step since the order exists solely to move this
// one vehicle.
func (d *Dispatcher) assignSyntheticOrder(v *kerneltypes.Vehicle, dest kerneltypes.Destination, namePrefix string) error {
	vehicleRef := v.Ref()
	order := &kerneltypes.TransportOrder{
		Name:            namePrefix,
		IntendedVehicle: &vehicleRef,
		DriveOrders:     []kerneltypes.DriveOrder{{Destination: dest, State: kerneltypes.DriveOrderPristine}},
		State:           kerneltypes.OrderActive,
		CreatedAt:       time.Now(),
	}
	created, err := d.pool.CreateOrder(order)
	if err != nil {
		return err
	}
	return d.assignOrderToVehicle(created, v)
}
