package chunkserver

import (
	"context"
	"time"

	"github.com/pyropy/chunkfs/core/model"
	"go.uber.org/zap"
)

type HealthMonitorService struct {
	store    ChunkStore
	metrics  *Metrics
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewHealthMonitorService(store ChunkStore, metrics *Metrics, interval time.Duration, log *zap.SugaredLogger) *HealthMonitorService {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &HealthMonitorService{
		store:    store,
		metrics:  metrics,
		interval: interval,
		log:      log,
	}
}

// Start reports chunk capacity once and then on every tick until ctx is done.
func (h *HealthMonitorService) Start(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Report()

	for {
		select {
		case <-ticker.C:
			h.Report()
		case <-ctx.Done():
			return
		}
	}
}

// Report refreshes the capacity gauges from the chunk store.
func (h *HealthMonitorService) Report() (model.ChunkStat, error) {
	stat, err := h.store.ChunkStat()
	if err != nil {
		h.log.Errorw("health", "error", "chunk stat failed", "err", err)
		return model.ChunkStat{}, err
	}

	h.metrics.ChunkTotal.Set(float64(stat.ChunkTotal))
	h.metrics.ChunkFree.Set(float64(stat.ChunkFree))

	h.log.Debugw("health", "chunkSize", stat.ChunkSize, "chunkTotal", stat.ChunkTotal, "chunkFree", stat.ChunkFree)

	return stat, nil
}
