// Package strategy implements the Recharge and Parking strategies: given
// an idle or low-battery vehicle, pick a low-contention destination by
// consulting the Router's aggregated targeted-points view and the pool's
// live occupancy, so two idle vehicles don't race for the same charger or
// parking spot.
package strategy
