package kernel

import (
	"testing"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/orderset"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DispatchTickInterval = 0 // irrelevant: tests call Dispatch directly
	return cfg
}

func seedTwoPointTopology(t *testing.T, k *Kernel) (*kerneltypes.Point, *kerneltypes.Point) {
	t.Helper()
	a, err := k.Pool.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)
	b, err := k.Pool.CreatePoint(&kerneltypes.Point{Name: "B"})
	require.NoError(t, err)
	_, err = k.Pool.CreatePath(&kerneltypes.Path{Name: "A-B", Source: a.Ref(), Destination: b.Ref(), Length: 1, MaxVelocity: 1})
	require.NoError(t, err)
	return a, b
}

func TestNewKernelStartsInModelling(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	require.Equal(t, StateModelling, k.State())
}

func TestEnterOperatingRejectsEmptyTopology(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)

	err = k.EnterOperating()
	require.Error(t, err)
	require.Equal(t, StateModelling, k.State())
}

func TestEnterOperatingSucceedsWithNonEmptyTopology(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	seedTwoPointTopology(t, k)

	require.NoError(t, k.EnterOperating())
	require.Equal(t, StateOperating, k.State())
	k.Shutdown()
}

func TestCreateTransportOrderRequiresOperating(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	_, b := seedTwoPointTopology(t, k)

	_, err = k.CreateTransportOrder(&kerneltypes.TransportOrder{
		DriveOrders: []kerneltypes.DriveOrder{{Destination: kerneltypes.Destination{Location: b.Ref()}}},
	})
	require.Error(t, err, "must be rejected in MODELLING")

	require.NoError(t, k.EnterOperating())
	defer k.Shutdown()

	order, err := k.CreateTransportOrder(&kerneltypes.TransportOrder{
		DriveOrders: []kerneltypes.DriveOrder{{Destination: kerneltypes.Destination{Location: b.Ref()}}},
	})
	require.NoError(t, err)
	require.Equal(t, kerneltypes.OrderRaw, order.State)
}

func TestCreateTransportOrderRejectsEmptyDriveOrders(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	seedTwoPointTopology(t, k)
	require.NoError(t, k.EnterOperating())
	defer k.Shutdown()

	_, err = k.CreateTransportOrder(&kerneltypes.TransportOrder{})
	require.Error(t, err)
}

func TestEnterModellingRejectsWhileVehicleNotIdle(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	seedTwoPointTopology(t, k)
	require.NoError(t, k.EnterOperating())
	defer k.Shutdown()

	_, err = k.Pool.CreateVehicle(&kerneltypes.Vehicle{Name: "V1", State: kerneltypes.VehicleExecuting, ProcState: kerneltypes.ProcProcessingOrder})
	require.NoError(t, err)

	err = k.EnterModelling()
	require.Error(t, err)
	require.Equal(t, StateOperating, k.State())
}

func TestEnterModellingSucceedsWhenEverythingIdle(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	seedTwoPointTopology(t, k)
	require.NoError(t, k.EnterOperating())

	_, err = k.Pool.CreateVehicle(&kerneltypes.Vehicle{Name: "V1", State: kerneltypes.VehicleIdle, ProcState: kerneltypes.ProcIdle})
	require.NoError(t, err)

	require.NoError(t, k.EnterModelling())
	require.Equal(t, StateModelling, k.State())
	require.Empty(t, k.Pool.ListPoints())
	require.Len(t, k.Pool.ListVehicles(), 1, "vehicles survive the transition")
}

func TestShutdownIsIdempotentFromAnyState(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	k.Shutdown()
	require.Equal(t, StateShutdown, k.State())
	k.Shutdown()
	require.Equal(t, StateShutdown, k.State())
}

func TestWithdrawOrderRequiresOperating(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	err = k.WithdrawOrder(1)
	require.Error(t, err)
}

func TestSubmitOrderSetCreatesEveryTransport(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	_, b := seedTwoPointTopology(t, k)
	require.NoError(t, k.EnterOperating())
	defer k.Shutdown()

	locType, err := k.Pool.CreateLocationType(&kerneltypes.LocationType{Name: "dock", AllowedOperations: []string{"LOAD"}})
	require.NoError(t, err)
	_, err = k.Pool.CreateLocation(&kerneltypes.Location{
		Name:  "dock-B",
		Type:  locType.Ref(),
		Links: []kerneltypes.LocationLink{{Point: b.Ref()}},
	})
	require.NoError(t, err)

	set := &orderset.TCSOrderSet{
		Transports: []orderset.Transport{
			{Name: "T1", Destinations: []orderset.Destination{{Location: "dock-B", Operation: "LOAD"}}},
		},
	}
	created, err := k.SubmitOrderSet(set)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "T1", created[0].Name)
}

func TestSubmitOrderSetFailsOnUnknownLocation(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	seedTwoPointTopology(t, k)
	require.NoError(t, k.EnterOperating())
	defer k.Shutdown()

	set := &orderset.TCSOrderSet{
		Transports: []orderset.Transport{
			{Name: "T1", Destinations: []orderset.Destination{{Location: "nowhere"}}},
		},
	}
	_, err = k.SubmitOrderSet(set)
	require.Error(t, err)
}
