package kernel

import (
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/orderset"
)

// SubmitOrderSet converts and creates every Transport in set, in order,
// stopping at the first conversion or creation failure. It returns the
// TransportOrders created so far alongside the error, so a caller can
// report a partial intake.
func (k *Kernel) SubmitOrderSet(set *orderset.TCSOrderSet) ([]*kerneltypes.TransportOrder, error) {
	if err := k.RequireState(StateOperating); err != nil {
		return nil, err
	}

	created := make([]*kerneltypes.TransportOrder, 0, len(set.Transports))
	for _, t := range set.Transports {
		order, err := orderset.ToTransportOrder(t, k.resolveLocationRef, k.resolveVehicleRef)
		if err != nil {
			return created, err
		}
		stored, err := k.CreateTransportOrder(order)
		if err != nil {
			return created, err
		}
		created = append(created, stored)
	}
	return created, nil
}

func (k *Kernel) resolveLocationRef(name string) (kerneltypes.Ref, error) {
	loc, err := k.Pool.GetLocationByName(name)
	if err != nil {
		return kerneltypes.Ref{}, err
	}
	return loc.Ref(), nil
}

func (k *Kernel) resolveVehicleRef(name string) (kerneltypes.Ref, error) {
	v, err := k.Pool.GetVehicleByName(name)
	if err != nil {
		return kerneltypes.Ref{}, err
	}
	return v.Ref(), nil
}
