package strategy

import (
	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/pool"
)

// occupancyMap maps point id to the id of the vehicle occupying it, for
// every currently occupied point in p.
func occupancyMap(p *pool.Pool) map[int64]int64 {
	out := make(map[int64]int64)
	for _, pt := range p.ListPoints() {
		if pt.OccupyingVehicle != nil {
			out[pt.ID] = pt.OccupyingVehicle.ID
		}
	}
	return out
}

// blockClosureOfPoint returns every point id that must be considered
// together with pointID because some block names both: pointID itself,
// plus the point members of every block pointID belongs to.
func blockClosureOfPoint(pointID int64, blocks []*kerneltypes.Block) []int64 {
	closure := []int64{pointID}
	for _, block := range blocks {
		member := false
		for _, ref := range block.Members {
			if ref.Class == kerneltypes.ClassPoint && ref.ID == pointID {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		for _, ref := range block.Members {
			if ref.Class != kerneltypes.ClassPoint {
				continue
			}
			already := false
			for _, p := range closure {
				if p == ref.ID {
					already = true
					break
				}
			}
			if !already {
				closure = append(closure, ref.ID)
			}
		}
	}
	return closure
}

// isContended reports whether any point in pointID's block closure is
// currently occupied by a vehicle other than requester, or appears in the
// router's targeted-points view.
func isContended(pointID, requester int64, occupancy map[int64]int64, targeted map[int64]bool, blocks []*kerneltypes.Block) bool {
	for _, p := range blockClosureOfPoint(pointID, blocks) {
		if occ, ok := occupancy[p]; ok && occ != requester {
			return true
		}
		if targeted[p] {
			return true
		}
	}
	return false
}
