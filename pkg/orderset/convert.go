package orderset

import (
	"fmt"
	"time"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
)

// ToTransportOrder converts one intake Transport into the domain
// TransportOrder the kernel operates on. Destination locations and the
// optional intended vehicle are resolved by name against the pool's
// current contents; an unresolvable name rejects the whole order rather
// than leaving a placeholder for later resolution — intake happens only
// in OPERATING, when the topology is already frozen.
//
// Per-destination Properties are accepted on the wire for forward
// compatibility with richer operation parameterization, but the domain
// model's Destination carries only a location and an operation name; they
// are not retained past conversion.
func ToTransportOrder(
	t Transport,
	resolveLocation func(name string) (kerneltypes.Ref, error),
	resolveVehicle func(name string) (kerneltypes.Ref, error),
) (*kerneltypes.TransportOrder, error) {
	if t.Script != nil {
		return nil, fmt.Errorf("transport %q: TransportScript references must be expanded before conversion", t.Name)
	}
	if len(t.Destinations) == 0 {
		return nil, fmt.Errorf("transport %q: must have at least one destination", t.Name)
	}

	driveOrders := make([]kerneltypes.DriveOrder, 0, len(t.Destinations))
	for _, d := range t.Destinations {
		loc, err := resolveLocation(d.Location)
		if err != nil {
			return nil, fmt.Errorf("transport %q destination %q: %w", t.Name, d.Location, err)
		}
		driveOrders = append(driveOrders, kerneltypes.DriveOrder{
			Destination: kerneltypes.Destination{Location: loc, Operation: d.Operation},
			State:       kerneltypes.DriveOrderPristine,
		})
	}

	order := &kerneltypes.TransportOrder{
		Name:        t.Name,
		DriveOrders: driveOrders,
		State:       kerneltypes.OrderRaw,
	}
	if t.DeadlineMillis > 0 {
		order.Deadline = time.UnixMilli(t.DeadlineMillis)
	}
	if t.IntendedVehicle != "" {
		v, err := resolveVehicle(t.IntendedVehicle)
		if err != nil {
			return nil, fmt.Errorf("transport %q: unknown intended vehicle %q: %w", t.Name, t.IntendedVehicle, err)
		}
		order.IntendedVehicle = &v
	}
	return order, nil
}
