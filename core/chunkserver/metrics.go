package chunkserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

type Metrics struct {
	Requests   *prometheus.CounterVec
	IOBytes    *prometheus.CounterVec
	ChunkTasks *prometheus.CounterVec
	ChunkTotal prometheus.Gauge
	ChunkFree  prometheus.Gauge
	IORunning  prometheus.Gauge
}

// NewMetrics registers the chunk server collectors with reg. A nil reg keeps
// the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_requests_total",
			Help: "Data requests handled by this chunk server.",
		}, []string{"operation", "status"}),
		IOBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_io_bytes_total",
			Help: "Bytes moved between bulk buffers and local chunks.",
		}, []string{"operation"}),
		ChunkTasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_chunk_tasks_total",
			Help: "Per chunk I/O tasks run on the io pool.",
		}, []string{"operation", "status"}),
		ChunkTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "chunkfs_chunk_total",
			Help: "Capacity of the chunk directory in chunks.",
		}),
		ChunkFree: f.NewGauge(prometheus.GaugeOpts{
			Name: "chunkfs_chunk_free",
			Help: "Free chunks in the chunk directory.",
		}),
		IORunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "chunkfs_io_pool_running",
			Help: "Chunk tasks currently holding an io worker.",
		}),
	}
}

func (m *Metrics) request(op string, errno int32) {
	status := statusOK
	if errno != 0 {
		status = statusError
	}

	m.Requests.WithLabelValues(op, status).Inc()
}

func (m *Metrics) chunkTask(op string, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}

	m.ChunkTasks.WithLabelValues(op, status).Inc()
}
