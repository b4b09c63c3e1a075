package dispatcher

import (
	"time"

	"github.com/cuemby/agvkernel/pkg/metrics"
)

// stepGarbageCollect is dispatch() step 1: sweep terminal transport orders
// older than the archival horizon.
func (d *Dispatcher) stepGarbageCollect() {
	now := time.Now()
	for _, order := range d.pool.ListOrders() {
		if !order.State.IsTerminal() || order.FinishedAt == nil {
			continue
		}
		if now.Sub(*order.FinishedAt) < d.cfg.ArchivalHorizon {
			continue
		}
		if err := d.pool.DeleteOrder(order.ID); err != nil {
			d.logger.Warn().Err(err).Int64("order", order.ID).Msg("failed to garbage collect order")
			continue
		}
		metrics.OrdersGarbageCollectedTotal.Inc()
		d.logger.Debug().Int64("order", order.ID).Msg("garbage collected terminal order")
	}
}
