package pool

import (
	"testing"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/stretchr/testify/require"
)

func newTestPool() *Pool {
	return New(events.NewBroker())
}

func TestCreatePointAssignsIDAndRejectsDuplicateName(t *testing.T) {
	p := newTestPool()

	pt, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)
	require.NotZero(t, pt.ID)

	_, err = p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.Error(t, err)
}

func TestGetPointReturnsDefensiveCopy(t *testing.T) {
	p := newTestPool()
	pt, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)

	fetched, err := p.GetPoint(pt.ID)
	require.NoError(t, err)
	fetched.Name = "mutated"

	again, err := p.GetPoint(pt.ID)
	require.NoError(t, err)
	require.Equal(t, "A", again.Name)
}

func TestUpdatePointRenameRejectsCollision(t *testing.T) {
	p := newTestPool()
	a, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)
	_, err = p.CreatePoint(&kerneltypes.Point{Name: "B"})
	require.NoError(t, err)

	a.Name = "B"
	_, err = p.UpdatePoint(a)
	require.Error(t, err)
}

func TestDeletePointRemovesNameIndex(t *testing.T) {
	p := newTestPool()
	a, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)

	require.NoError(t, p.DeletePoint(a.ID))

	_, err = p.GetPointByName("A")
	require.Error(t, err)

	// The name is free again.
	_, err = p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)
}

func TestCreatePathRejectsSelfLoop(t *testing.T) {
	p := newTestPool()
	a, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)

	_, err = p.CreatePath(&kerneltypes.Path{Name: "loop", Source: a.Ref(), Destination: a.Ref(), Length: 1})
	require.Error(t, err)
}

func TestResolveByNameCoversEveryClass(t *testing.T) {
	p := newTestPool()
	pt, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)
	v, err := p.CreateVehicle(&kerneltypes.Vehicle{Name: "V1"})
	require.NoError(t, err)

	id, ok := p.ResolveByName(kerneltypes.ClassPoint, "A")
	require.True(t, ok)
	require.Equal(t, pt.ID, id)

	id, ok = p.ResolveByName(kerneltypes.ClassVehicle, "V1")
	require.True(t, ok)
	require.Equal(t, v.ID, id)

	_, ok = p.ResolveByName(kerneltypes.ClassPoint, "nonexistent")
	require.False(t, ok)
}

func TestCreateOrderGeneratesNameWhenEmpty(t *testing.T) {
	p := newTestPool()
	order, err := p.CreateOrder(&kerneltypes.TransportOrder{})
	require.NoError(t, err)
	require.NotEmpty(t, order.Name)
}

func TestClearRemovesTopologyButKeepsVehiclesAndOrders(t *testing.T) {
	p := newTestPool()
	_, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)
	_, err = p.CreateVehicle(&kerneltypes.Vehicle{Name: "V1"})
	require.NoError(t, err)
	_, err = p.CreateOrder(&kerneltypes.TransportOrder{Name: "TO-1"})
	require.NoError(t, err)

	p.Clear()

	require.Empty(t, p.ListPoints())
	require.Len(t, p.ListVehicles(), 1)
	require.Len(t, p.ListOrders(), 1)
}

func TestCreateLocationRejectsUnknownLocationType(t *testing.T) {
	p := newTestPool()
	loc := &kerneltypes.Location{Name: "L1", Type: kerneltypes.NewRef(kerneltypes.ClassLocationType, 999, "missing")}
	_, err := p.CreateLocation(loc)
	require.Error(t, err)
}
