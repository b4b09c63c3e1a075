package strategy

import (
	"testing"

	"github.com/cuemby/agvkernel/pkg/events"
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/cuemby/agvkernel/pkg/router"
	"github.com/stretchr/testify/require"
)

// buildRechargeTopology creates a home point with two charging points p5
// (cost 30) and p6 (cost 50), each fronted by its own Location (L1, L2)
// of a location type allowing "charge".
func buildRechargeTopology(t *testing.T) (*pool.Pool, *router.Router, *kerneltypes.Point, *kerneltypes.Point, *kerneltypes.Point) {
	t.Helper()
	p := pool.New(events.NewBroker())

	home, err := p.CreatePoint(&kerneltypes.Point{Name: "home"})
	require.NoError(t, err)
	p5, err := p.CreatePoint(&kerneltypes.Point{Name: "p5"})
	require.NoError(t, err)
	p6, err := p.CreatePoint(&kerneltypes.Point{Name: "p6"})
	require.NoError(t, err)

	_, err = p.CreatePath(&kerneltypes.Path{Name: "home-p5", Source: home.Ref(), Destination: p5.Ref(), Length: 30, MaxVelocity: 1})
	require.NoError(t, err)
	_, err = p.CreatePath(&kerneltypes.Path{Name: "home-p6", Source: home.Ref(), Destination: p6.Ref(), Length: 50, MaxVelocity: 1})
	require.NoError(t, err)

	locType, err := p.CreateLocationType(&kerneltypes.LocationType{Name: "charger", AllowedOperations: []string{"charge"}})
	require.NoError(t, err)

	_, err = p.CreateLocation(&kerneltypes.Location{
		Name:  "L1",
		Type:  locType.Ref(),
		Links: []kerneltypes.LocationLink{{Point: p5.Ref()}},
	})
	require.NoError(t, err)
	_, err = p.CreateLocation(&kerneltypes.Location{
		Name:  "L2",
		Type:  locType.Ref(),
		Links: []kerneltypes.LocationLink{{Point: p6.Ref()}},
	})
	require.NoError(t, err)

	r := router.New(p, router.NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	return p, r, home, p5, p6
}

func TestRechargeStrategySkipsTargetedPointForCheaperAlternative(t *testing.T) {
	p, r, home, p5, _ := buildRechargeTopology(t)

	homeRef := home.Ref()
	v1, err := p.CreateVehicle(&kerneltypes.Vehicle{Name: "V1", RechargeOperation: "charge", CurrentPosition: &homeRef})
	require.NoError(t, err)

	v3, err := p.CreateVehicle(&kerneltypes.Vehicle{Name: "V3"})
	require.NoError(t, err)
	r.SelectRoute(v3.ID, &kerneltypes.Route{
		Steps: []kerneltypes.Step{{DestinationPoint: p5.Ref()}},
		Cost:  1,
	})

	strategy := NewRechargeStrategy(p, r)
	chosen, err := strategy.Select(v1)
	require.NoError(t, err)
	require.NotNil(t, chosen)
	require.Equal(t, "L2", chosen.Name)
}

func TestRechargeStrategyPicksCheapestWhenNothingContended(t *testing.T) {
	p, r, home, _, _ := buildRechargeTopology(t)

	v1, err := p.CreateVehicle(&kerneltypes.Vehicle{Name: "V1", RechargeOperation: "charge"})
	require.NoError(t, err)
	homeRef := home.Ref()
	v1.CurrentPosition = &homeRef
	v1, err = p.UpdateVehicle(v1)
	require.NoError(t, err)

	strategy := NewRechargeStrategy(p, r)
	chosen, err := strategy.Select(v1)
	require.NoError(t, err)
	require.NotNil(t, chosen)
	require.Equal(t, "L1", chosen.Name)
}

func TestRechargeStrategyReturnsNilWhenNoCandidateAvailable(t *testing.T) {
	p := pool.New(events.NewBroker())
	r := router.New(p, router.NewDistanceEvaluator())
	require.NoError(t, r.UpdateRoutingTables())

	home, err := p.CreatePoint(&kerneltypes.Point{Name: "home"})
	require.NoError(t, err)
	homeRef := home.Ref()

	v1, err := p.CreateVehicle(&kerneltypes.Vehicle{Name: "V1", RechargeOperation: "charge", CurrentPosition: &homeRef})
	require.NoError(t, err)

	strategy := NewRechargeStrategy(p, r)
	chosen, err := strategy.Select(v1)
	require.NoError(t, err)
	require.Nil(t, chosen)
}
