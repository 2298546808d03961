package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	Register("pool", NewPoolHandler)
}

type PoolHandler struct {
	blocks *prometheus.Desc
	total  *prometheus.Desc
}

func NewPoolHandler(_ *slog.Logger) (MetricHandler, error) {
	return &PoolHandler{
		blocks: prometheus.NewDesc(
			"cidrd_pool_blocks",
			"Blocks in the pool by state.",
			[]string{"state"}, nil,
		),
		total: prometheus.NewDesc(
			"cidrd_pool_blocks_total",
			"Blocks the pool is partitioned into.",
			nil, nil,
		),
	}, nil
}

func (h *PoolHandler) Name() string {
	return "pool"
}

func (h *PoolHandler) Describe(ch chan<- *prometheus.Desc) {
	ch <- h.blocks
	ch <- h.total
}

func (h *PoolHandler) Collect(_ context.Context, src Source, ch chan<- prometheus.Metric) error {
	stats := src.Stats()
	ch <- prometheus.MustNewConstMetric(h.blocks, prometheus.GaugeValue, float64(stats.Assigned), "assigned")
	ch <- prometheus.MustNewConstMetric(h.blocks, prometheus.GaugeValue, float64(stats.Free), "free")
	ch <- prometheus.MustNewConstMetric(h.total, prometheus.GaugeValue, float64(stats.Total))
	return nil
}
