package dispatcher

import (
	"testing"
	"time"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/cuemby/agvkernel/pkg/resources"
	"github.com/cuemby/agvkernel/pkg/router"
	"github.com/cuemby/agvkernel/pkg/strategy"
	"github.com/cuemby/agvkernel/pkg/vehicle"
	"github.com/stretchr/testify/require"
)

// chainTopology builds n points in a straight line, p0..p(n-1), linked by
// single-direction paths of length 1 each.
func chainTopology(t *testing.T, p *pool.Pool, n int) []*kerneltypes.Point {
	t.Helper()
	points := make([]*kerneltypes.Point, n)
	for i := 0; i < n; i++ {
		pt, err := p.CreatePoint(&kerneltypes.Point{Name: pointName(i)})
		require.NoError(t, err)
		points[i] = pt
	}
	for i := 0; i < n-1; i++ {
		_, err := p.CreatePath(&kerneltypes.Path{
			Name:        pointName(i) + "-" + pointName(i+1),
			Source:      points[i].Ref(),
			Destination: points[i+1].Ref(),
			Length:      1,
			MaxVelocity: 1,
		})
		require.NoError(t, err)
	}
	return points
}

func pointName(i int) string {
	return string(rune('A' + i))
}

func drainReport(t *testing.T, d *Dispatcher) {
	t.Helper()
	select {
	case r := <-d.vehicles.Reports():
		d.handleReport(r)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for vehicle report")
	}
}

func TestDispatchAssignsRoutesAndCompletesASingleLegOrder(t *testing.T) {
	broker := events.NewBroker()
	p := pool.New(broker)
	points := chainTopology(t, p, 2)

	r := router.New(p, router.NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	startRef := points[0].Ref()
	v, err := p.CreateVehicle(&kerneltypes.Vehicle{
		Name: "V1", Energy: 100, EnergyCriticalThreshold: 10,
		State: kerneltypes.VehicleIdle, ProcState: kerneltypes.ProcIdle,
		CurrentPosition: &startRef,
	})
	require.NoError(t, err)

	rm := resources.New()
	vehicles := vehicle.NewRegistry(100)
	vehicles.RegisterSimulated(v.ID)
	d := New(Config{TickInterval: time.Hour, ArchivalHorizon: 24 * time.Hour}, p, r, rm, broker, vehicles, nil, nil)

	order, err := p.CreateOrder(&kerneltypes.TransportOrder{
		Name:        "TO-1",
		DriveOrders: []kerneltypes.DriveOrder{{Destination: kerneltypes.Destination{Location: points[1].Ref()}, State: kerneltypes.DriveOrderPristine}},
		State:       kerneltypes.OrderRaw,
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch())

	assigned, err := p.GetOrder(order.ID)
	require.NoError(t, err)
	require.Equal(t, kerneltypes.OrderBeingProcessed, assigned.State)
	require.NotNil(t, assigned.ProcessingVehicle)
	require.Equal(t, v.ID, assigned.ProcessingVehicle.ID)

	drainReport(t, d) // arrival at destination finishes the only drive order

	finished, err := p.GetOrder(order.ID)
	require.NoError(t, err)
	require.Equal(t, kerneltypes.OrderFinished, finished.State)

	idled, err := p.GetVehicle(v.ID)
	require.NoError(t, err)
	require.Equal(t, kerneltypes.ProcIdle, idled.ProcState)
	require.Equal(t, kerneltypes.VehicleIdle, idled.State)
	// The vehicle keeps holding the point it now occupies; only the path
	// and point it departed from were released.
	require.True(t, rm.GetAllocations()[v.ID].Contains(points[1].Ref()))
}

func TestWithdrawalMidOrderFinishesCurrentStepThenFreesAndEmitsInOrder(t *testing.T) {
	broker := events.NewBroker()
	p := pool.New(broker)
	points := chainTopology(t, p, 4) // A -> B -> C -> D

	r := router.New(p, router.NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	startRef := points[0].Ref()
	v, err := p.CreateVehicle(&kerneltypes.Vehicle{
		Name: "V1", Energy: 100, EnergyCriticalThreshold: 10,
		State: kerneltypes.VehicleIdle, ProcState: kerneltypes.ProcIdle,
		CurrentPosition: &startRef,
	})
	require.NoError(t, err)

	rm := resources.New()
	vehicles := vehicle.NewRegistry(100)
	vehicles.RegisterSimulated(v.ID)
	d := New(Config{TickInterval: time.Hour, ArchivalHorizon: 24 * time.Hour}, p, r, rm, broker, vehicles, nil, nil)

	order, err := p.CreateOrder(&kerneltypes.TransportOrder{
		Name: "TO",
		DriveOrders: []kerneltypes.DriveOrder{
			{Destination: kerneltypes.Destination{Location: points[1].Ref()}, State: kerneltypes.DriveOrderPristine},
			{Destination: kerneltypes.Destination{Location: points[2].Ref()}, State: kerneltypes.DriveOrderPristine},
			{Destination: kerneltypes.Destination{Location: points[3].Ref()}, State: kerneltypes.DriveOrderPristine},
		},
		State:     kerneltypes.OrderRaw,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch())
	drainReport(t, d) // drive order #1 (A->B) finishes, #2 (B->C) begins

	mid, err := p.GetOrder(order.ID)
	require.NoError(t, err)
	require.Equal(t, kerneltypes.DriveOrderFinished, mid.DriveOrders[0].State)
	require.NotEqual(t, kerneltypes.DriveOrderFinished, mid.DriveOrders[1].State, "should still be mid-leg")

	sub := broker.Subscribe(nil)
	defer broker.Unsubscribe(sub)

	d.RequestWithdraw(order.ID)
	require.NoError(t, d.Dispatch()) // stepWithdraw leaves it flagged: vehicle is processing

	stillProcessing, err := p.GetOrder(order.ID)
	require.NoError(t, err)
	require.Equal(t, kerneltypes.OrderBeingProcessed, stillProcessing.State)

	drainReport(t, d) // arrival at C finishes drive order #2 and triggers the withdrawal

	var tail []*events.Event
loop:
	for {
		select {
		case e := <-sub:
			tail = append(tail, e)
		default:
			break loop
		}
	}
	require.GreaterOrEqual(t, len(tail), 3)
	last3 := tail[len(tail)-3:]
	require.Equal(t, events.EventObjectChanged, last3[0].Type)
	require.Equal(t, string(kerneltypes.ClassTransportOrder), last3[0].ObjectClass)
	require.Equal(t, events.EventObjectChanged, last3[1].Type)
	require.Equal(t, string(kerneltypes.ClassVehicle), last3[1].ObjectClass)
	require.Equal(t, events.EventMessage, last3[2].Type)
	require.Equal(t, "scheduler-changed", last3[2].Message)

	withdrawn, err := p.GetOrder(order.ID)
	require.NoError(t, err)
	require.Equal(t, kerneltypes.OrderWithdrawn, withdrawn.State)

	idled, err := p.GetVehicle(v.ID)
	require.NoError(t, err)
	require.Equal(t, kerneltypes.ProcIdle, idled.ProcState)
	require.Empty(t, rm.GetAllocations()[v.ID])
}

func TestGarbageCollectSweepsOnlyOrdersPastTheArchivalHorizon(t *testing.T) {
	broker := events.NewBroker()
	p := pool.New(broker)
	r := router.New(p, router.NewDistanceEvaluator())
	rm := resources.New()
	vehicles := vehicle.NewRegistry(10)

	d := New(Config{TickInterval: time.Hour, ArchivalHorizon: time.Hour}, p, r, rm, broker, vehicles, nil, nil)

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()
	oldOrder, err := p.CreateOrder(&kerneltypes.TransportOrder{Name: "old", State: kerneltypes.OrderFinished, FinishedAt: &old})
	require.NoError(t, err)
	recentOrder, err := p.CreateOrder(&kerneltypes.TransportOrder{Name: "recent", State: kerneltypes.OrderFinished, FinishedAt: &recent})
	require.NoError(t, err)

	d.stepGarbageCollect()

	_, err = p.GetOrder(oldOrder.ID)
	require.Error(t, err)
	_, err = p.GetOrder(recentOrder.ID)
	require.NoError(t, err)
}

func TestStepRechargeAssignsSyntheticOrderToCriticallyLowIdleVehicle(t *testing.T) {
	broker := events.NewBroker()
	p := pool.New(broker)
	points := chainTopology(t, p, 2)

	locType, err := p.CreateLocationType(&kerneltypes.LocationType{Name: "charger", AllowedOperations: []string{"charge"}})
	require.NoError(t, err)
	_, err = p.CreateLocation(&kerneltypes.Location{
		Name:  "L1",
		Type:  locType.Ref(),
		Links: []kerneltypes.LocationLink{{Point: points[1].Ref()}},
	})
	require.NoError(t, err)

	r := router.New(p, router.NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	startRef := points[0].Ref()
	v, err := p.CreateVehicle(&kerneltypes.Vehicle{
		Name: "V1", Energy: 5, EnergyCriticalThreshold: 10,
		State: kerneltypes.VehicleIdle, ProcState: kerneltypes.ProcIdle,
		CurrentPosition: &startRef, RechargeOperation: "charge",
	})
	require.NoError(t, err)

	rm := resources.New()
	vehicles := vehicle.NewRegistry(10)
	vehicles.RegisterSimulated(v.ID)
	recharge := strategy.NewRechargeStrategy(p, r)
	d := New(Config{TickInterval: time.Hour, ArchivalHorizon: time.Hour}, p, r, rm, broker, vehicles, recharge, nil)

	d.stepRecharge()

	orders := p.ListOrders()
	require.Len(t, orders, 1)
	require.Equal(t, kerneltypes.OrderBeingProcessed, orders[0].State)
	require.NotNil(t, orders[0].ProcessingVehicle)
	require.Equal(t, v.ID, orders[0].ProcessingVehicle.ID)
}
