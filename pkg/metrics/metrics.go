package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool metrics
	ObjectsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agvkernel_objects_total",
			Help: "Total number of pool objects by class",
		},
		[]string{"class"},
	)

	VehiclesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agvkernel_vehicles_total",
			Help: "Total number of vehicles by processing state",
		},
		[]string{"state"},
	)

	OrdersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agvkernel_transport_orders_total",
			Help: "Total number of transport orders by state",
		},
		[]string{"state"},
	)

	// Router metrics
	RoutingTableBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agvkernel_routing_table_build_duration_seconds",
			Help:    "Time taken to rebuild every vehicle's routing table in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RouteComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agvkernel_route_compute_duration_seconds",
			Help:    "Time taken to compute a route in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RoutesUnreachableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_routes_unreachable_total",
			Help: "Total number of route requests that found no path",
		},
	)

	// Resource manager metrics
	ResourceAllocationsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_resource_allocations_granted_total",
			Help: "Total number of resource claims granted",
		},
	)

	ResourceAllocationsQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_resource_allocations_queued_total",
			Help: "Total number of resource claims that had to wait",
		},
	)

	ResourceAllocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agvkernel_resource_allocation_duration_seconds",
			Help:    "Time taken to process an allocation request in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Dispatcher metrics
	DispatchCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agvkernel_dispatch_cycle_duration_seconds",
			Help:    "Time taken for a dispatch cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_dispatch_cycles_total",
			Help: "Total number of dispatch cycles completed",
		},
	)

	OrdersAssignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_orders_assigned_total",
			Help: "Total number of transport orders assigned to a vehicle",
		},
	)

	OrdersFinishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_orders_finished_total",
			Help: "Total number of transport orders that finished successfully",
		},
	)

	OrdersFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_orders_failed_total",
			Help: "Total number of transport orders that failed",
		},
	)

	OrdersWithdrawnTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_orders_withdrawn_total",
			Help: "Total number of transport orders withdrawn before completion",
		},
	)

	OrdersGarbageCollectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_orders_garbage_collected_total",
			Help: "Total number of finished orders swept from the pool",
		},
	)

	// Strategy metrics
	RechargeSelectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_recharge_selections_total",
			Help: "Total number of recharge locations selected for idle vehicles",
		},
	)

	ParkingSelectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agvkernel_parking_selections_total",
			Help: "Total number of parking points selected for idle vehicles",
		},
	)
)

func init() {
	prometheus.MustRegister(ObjectsTotal)
	prometheus.MustRegister(VehiclesTotal)
	prometheus.MustRegister(OrdersTotal)
	prometheus.MustRegister(RoutingTableBuildDuration)
	prometheus.MustRegister(RouteComputeDuration)
	prometheus.MustRegister(RoutesUnreachableTotal)
	prometheus.MustRegister(ResourceAllocationsGranted)
	prometheus.MustRegister(ResourceAllocationsQueued)
	prometheus.MustRegister(ResourceAllocationDuration)
	prometheus.MustRegister(DispatchCycleDuration)
	prometheus.MustRegister(DispatchCyclesTotal)
	prometheus.MustRegister(OrdersAssignedTotal)
	prometheus.MustRegister(OrdersFinishedTotal)
	prometheus.MustRegister(OrdersFailedTotal)
	prometheus.MustRegister(OrdersWithdrawnTotal)
	prometheus.MustRegister(OrdersGarbageCollectedTotal)
	prometheus.MustRegister(RechargeSelectionsTotal)
	prometheus.MustRegister(ParkingSelectionsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
