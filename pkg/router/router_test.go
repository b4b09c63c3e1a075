package router

import (
	"testing"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/stretchr/testify/require"
)

// buildTieBreakGraph constructs the four-point graph used across the
// shortest-path tests: A->B len 10, A->C len 10, B->D len 5, C->D len 5,
// with ids assigned in that listed order.
func buildTieBreakGraph(t *testing.T, orientations bool) (*pool.Pool, *kerneltypes.Vehicle) {
	t.Helper()
	p := pool.New(events.NewBroker())

	a, err := p.CreatePoint(&kerneltypes.Point{Name: "A"})
	require.NoError(t, err)
	b, err := p.CreatePoint(&kerneltypes.Point{Name: "B"})
	require.NoError(t, err)
	c, err := p.CreatePoint(&kerneltypes.Point{Name: "C"})
	require.NoError(t, err)
	d, err := p.CreatePoint(&kerneltypes.Point{Name: "D"})
	require.NoError(t, err)

	mkPath := func(name string, src, dst *kerneltypes.Point, length int64, orientation string) {
		props := map[string]string{}
		if orientations {
			props["orientation"] = orientation
		}
		_, err := p.CreatePath(&kerneltypes.Path{
			Name:        name,
			Source:      src.Ref(),
			Destination: dst.Ref(),
			Length:      length,
			MaxVelocity: 1,
			Properties:  props,
		})
		require.NoError(t, err)
	}
	mkPath("A-B", a, b, 10, "x")
	mkPath("A-C", a, c, 10, "x")
	mkPath("B-D", b, d, 5, "y")
	mkPath("C-D", c, d, 5, "y")

	v, err := p.CreateVehicle(&kerneltypes.Vehicle{Name: "V1"})
	require.NoError(t, err)

	return p, v
}

func TestShortestPathTieBreakPrefersLowerDestinationID(t *testing.T) {
	p, v := buildTieBreakGraph(t, false)
	a, err := p.GetPointByName("A")
	require.NoError(t, err)
	bPt, err := p.GetPointByName("B")
	require.NoError(t, err)
	d, err := p.GetPointByName("D")
	require.NoError(t, err)

	r := New(p, NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	route, ok := r.GetRoute(v.ID, a.ID, d.ID)
	require.True(t, ok)
	require.Len(t, route.Steps, 2)
	require.Equal(t, int64(15), route.Cost)
	require.Equal(t, bPt.ID, route.Steps[0].DestinationPoint.ID)
	require.Equal(t, d.ID, route.Steps[1].DestinationPoint.ID)
}

func TestTurnPenaltyAddsCostOnOrientationChange(t *testing.T) {
	p, v := buildTieBreakGraph(t, true)
	a, err := p.GetPointByName("A")
	require.NoError(t, err)
	d, err := p.GetPointByName("D")
	require.NoError(t, err)

	eval, err := NewTurnPenaltyEvaluator(7)
	require.NoError(t, err)
	r := New(p, eval)
	require.NoError(t, r.UpdateRoutingTables())

	cost := r.GetCosts(v.ID, a.ID, d.ID)
	require.Equal(t, int64(22), cost)
}

func TestRouteBetweenIdenticalEndpointsIsZero(t *testing.T) {
	p, v := buildTieBreakGraph(t, false)
	a, err := p.GetPointByName("A")
	require.NoError(t, err)

	r := New(p, NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	route, ok := r.GetRoute(v.ID, a.ID, a.ID)
	require.True(t, ok)
	require.Empty(t, route.Steps)
	require.Equal(t, int64(0), route.Cost)
}

func TestRouteWithEveryPathLockedIsUnreachable(t *testing.T) {
	p, v := buildTieBreakGraph(t, false)
	a, err := p.GetPointByName("A")
	require.NoError(t, err)
	d, err := p.GetPointByName("D")
	require.NoError(t, err)

	for _, path := range p.ListPaths() {
		path.Locked = true
		_, err := p.UpdatePath(path)
		require.NoError(t, err)
	}

	r := New(p, NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	_, ok := r.GetRoute(v.ID, a.ID, d.ID)
	require.False(t, ok)
	require.Equal(t, CostInfinity, r.GetCosts(v.ID, a.ID, d.ID))
}

func TestUpdateRoutingTablesIsIdempotent(t *testing.T) {
	p, v := buildTieBreakGraph(t, false)
	a, err := p.GetPointByName("A")
	require.NoError(t, err)
	d, err := p.GetPointByName("D")
	require.NoError(t, err)

	r := New(p, NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())
	first := r.GetCosts(v.ID, a.ID, d.ID)

	require.NoError(t, r.UpdateRoutingTables())
	second := r.GetCosts(v.ID, a.ID, d.ID)

	require.Equal(t, first, second)
}

func TestSelectedRoutesOnlyContainCurrentSelections(t *testing.T) {
	p, v := buildTieBreakGraph(t, false)
	a, err := p.GetPointByName("A")
	require.NoError(t, err)
	d, err := p.GetPointByName("D")
	require.NoError(t, err)

	r := New(p, NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	route, ok := r.GetRoute(v.ID, a.ID, d.ID)
	require.True(t, ok)
	r.SelectRoute(v.ID, route)

	selected := r.GetSelectedRoutes()
	require.Contains(t, selected, v.ID)

	targeted := r.GetTargetedPoints()
	require.True(t, targeted[d.ID])

	r.SelectRoute(v.ID, nil)
	require.NotContains(t, r.GetSelectedRoutes(), v.ID)
}
