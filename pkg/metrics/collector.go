package metrics

import (
	"time"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/cuemby/agvkernel/pkg/pool"
)

// Collector periodically samples the pool's current contents into gauges
// (ObjectsTotal, VehiclesTotal, OrdersTotal) on a ticking sample loop,
// counting Points/Paths/Locations/Blocks/Vehicles/TransportOrders.
type Collector struct {
	pool   *pool.Pool
	stopCh chan struct{}
}

// NewCollector creates a Collector sampling p.
func NewCollector(p *pool.Pool) *Collector {
	return &Collector{
		pool:   p,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ObjectsTotal.WithLabelValues(string(kerneltypes.ClassPoint)).Set(float64(len(c.pool.ListPoints())))
	ObjectsTotal.WithLabelValues(string(kerneltypes.ClassPath)).Set(float64(len(c.pool.ListPaths())))
	ObjectsTotal.WithLabelValues(string(kerneltypes.ClassLocation)).Set(float64(len(c.pool.ListLocations())))
	ObjectsTotal.WithLabelValues(string(kerneltypes.ClassLocationType)).Set(float64(len(c.pool.ListLocationTypes())))
	ObjectsTotal.WithLabelValues(string(kerneltypes.ClassBlock)).Set(float64(len(c.pool.ListBlocks())))

	vehicleCounts := make(map[kerneltypes.VehicleProcState]int)
	for _, v := range c.pool.ListVehicles() {
		vehicleCounts[v.ProcState]++
	}
	for state, count := range vehicleCounts {
		VehiclesTotal.WithLabelValues(string(state)).Set(float64(count))
	}

	orderCounts := make(map[kerneltypes.OrderState]int)
	for _, o := range c.pool.ListOrders() {
		orderCounts[o.State]++
	}
	for state, count := range orderCounts {
		OrdersTotal.WithLabelValues(string(state)).Set(float64(count))
	}
}
