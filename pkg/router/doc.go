// Package router computes least-cost routes for vehicles over the
// topology held in the Object Pool. A Router rebuilds a per-vehicle
// filtered graph via UpdateRoutingTables, then answers routability,
// route and cost queries against that graph using a pluggable Evaluator
// for per-step cost. It also tracks each vehicle's currently selected
// route, the aggregate view the recharge and parking strategies consult
// to avoid contended points.
package router
