package strategy

import (
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/log"
	"github.com/cuemby/agvkernel/pkg/metrics"
	"github.com/cuemby/agvkernel/pkg/pool"
	"github.com/cuemby/agvkernel/pkg/router"
	"github.com/rs/zerolog"
)

// ParkingStrategy picks a parking destination for a vehicle with no
// pending work. Analogous to RechargeStrategy but over points flagged
// PointPark rather than locations.
type ParkingStrategy struct {
	pool   *pool.Pool
	router *router.Router
	logger zerolog.Logger
}

// NewParkingStrategy returns a ParkingStrategy consulting p and r.
func NewParkingStrategy(p *pool.Pool, r *router.Router) *ParkingStrategy {
	return &ParkingStrategy{pool: p, router: r, logger: log.WithComponent("parking-strategy")}
}

type candidatePoint struct {
	point *kerneltypes.Point
	cost  int64
}

// Select returns the nearest free parking point for vehicle, or (nil, nil)
// if none is free, in which case the vehicle remains at its current
// position.
func (s *ParkingStrategy) Select(vehicle *kerneltypes.Vehicle) (*kerneltypes.Point, error) {
	if vehicle.CurrentPosition == nil {
		return nil, kerneltypes.NewKernelError(kerneltypes.ErrNoRouteFound, "vehicle has no current position", nil)
	}

	points := s.pool.ListPoints()
	blocks := s.pool.ListBlocks()
	occupancy := occupancyMap(s.pool)
	targeted := s.router.GetTargetedPoints()

	var candidates []candidatePoint
	for _, pt := range points {
		if pt.Type != kerneltypes.PointPark {
			continue
		}
		if isContended(pt.ID, vehicle.ID, occupancy, targeted, blocks) {
			continue
		}
		cost := s.router.GetCosts(vehicle.ID, vehicle.CurrentPosition.ID, pt.ID)
		if cost == router.CostInfinity {
			continue
		}
		candidates = append(candidates, candidatePoint{point: pt, cost: cost})
	}

	if len(candidates) == 0 {
		s.logger.Debug().Int64("vehicle", vehicle.ID).Msg("no parking point available")
		return nil, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.cost < best.cost || (c.cost == best.cost && c.point.ID < best.point.ID) {
			best = c
		}
	}

	metrics.ParkingSelectionsTotal.Inc()
	s.logger.Info().Int64("vehicle", vehicle.ID).Int64("point", best.point.ID).Int64("cost", best.cost).Msg("parking point selected")
	return best.point, nil
}
