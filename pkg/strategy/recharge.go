package strategy

import (
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/cuemby/agvkernel/pkg/router"
	"github.com/rs/zerolog"
)

// RechargeStrategy picks a recharge destination for a vehicle whose energy
// has fallen to or below its critical threshold: filter candidates by a
// hard contention constraint, score the survivors by route cost, and
// tie-break by location id.
type RechargeStrategy struct {
	pool   *pool.Pool
	router *router.Router
	logger zerolog.Logger
}

// NewRechargeStrategy returns a RechargeStrategy consulting p and r.
func NewRechargeStrategy(p *pool.Pool, r *router.Router) *RechargeStrategy {
	return &RechargeStrategy{pool: p, router: r, logger: log.WithComponent("recharge-strategy")}
}

// candidateLink is a surviving (location, link, access point) triple
// scored by route cost.
type candidateLink struct {
	location *kerneltypes.Location
	point    int64
	cost     int64
}

// Select runs the five-step recharge algorithm and returns the chosen
// Location, or (nil, nil) if every candidate is
// contended or unreachable.
func (s *RechargeStrategy) Select(vehicle *kerneltypes.Vehicle) (*kerneltypes.Location, error) {
	if vehicle.CurrentPosition == nil {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrNoRouteFound, "vehicle has no current position", nil)
	}

	locations := s.pool.ListLocations()
	blocks := s.pool.ListBlocks()
	occupancy := occupancyMap(s.pool)
	targeted := s.router.GetTargetedPoints()

	var candidates []candidateLink
	for _, loc := range locations {
		locType, err := s.locationType(loc)
		if err != nil || !locType.Allows(vehicle.RechargeOperation) {
			continue
		}
		for _, link := range loc.Links {
			if !link.Allows(vehicle.RechargeOperation, locType) {
				continue
			}
			if isContended(link.Point.ID, vehicle.ID, occupancy, targeted, blocks) {
				continue
			}
			cost := s.router.GetCosts(vehicle.ID, vehicle.CurrentPosition.ID, link.Point.ID)
			if cost == router.CostInfinity {
				continue
			}
			candidates = append(candidates, candidateLink{location: loc, point: link.Point.ID, cost: cost})
		}
	}

	if len(candidates) == 0 {
		s.logger.Debug().Int64("vehicle", vehicle.ID).Msg("no recharge candidate available")
		return nil, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.cost < best.cost || (c.cost == best.cost && c.location.ID < best.location.ID) {
			best = c
		}
	}

	metrics.RechargeSelectionsTotal.Inc()
	s.logger.Info().Int64("vehicle", vehicle.ID).Int64("location", best.location.ID).Int64("cost", best.cost).Msg("recharge location selected")
	return best.location, nil
}

func (s *RechargeStrategy) locationType(loc *kerneltypes.Location) (*kerneltypes.LocationType, error) {
	if loc.Type.IsPlaceholder() {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrObjectUnknown, "location type not resolved", nil)
	}
	return s.pool.GetLocationType(loc.Type.ID)
}
