/*
Package metrics registers the kernel's Prometheus collectors.

Gauges track live counts (objects in the pool, vehicles by processing state,
orders by state); histograms track per-cycle and per-operation latency via
the Timer helper (NewTimer, then ObserveDuration once the operation ends).
Collectors are registered once in init, so importing this package is enough
to make them visible on Handler()'s /metrics endpoint.
*/
package metrics
