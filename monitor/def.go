package monitor

import (
	"FrameAnnotator/logger"
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Monitor owns the node's prometheus registry. A nil *Monitor is valid
// and records nothing.
type Monitor struct {
	registry *prometheus.Registry
	proc     *process.Process

	memUsage prometheus.Gauge
	cpuUsage prometheus.Gauge

	requests        *prometheus.CounterVec
	framesProcessed prometheus.Counter
	framesDropped   prometheus.Counter
	framesFailed    *prometheus.CounterVec
	facesDetected   prometheus.Counter
	processing      prometheus.Histogram
}

func New() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotator_requests_total",
			Help: "Total number of requests received, by transport",
		}, []string{"transport"}),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "annotator_frames_processed_total",
			Help: "Frames that went through the whole pipeline",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "annotator_frames_dropped_total",
			Help: "Frames dropped because a previous frame was still in flight",
		}),
		framesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotator_frames_failed_total",
			Help: "Frames that failed, by pipeline stage",
		}, []string{"stage"}),
		facesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "annotator_faces_detected_total",
			Help: "Faces found across all frames",
		}),
		processing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "annotator_frame_processing_seconds",
			Help:    "Time spent processing one frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.memUsage, m.cpuUsage, m.requests,
		m.framesProcessed, m.framesDropped, m.framesFailed,
		m.facesDetected, m.processing,
	)
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	} else {
		logger.Log().Warn("Process metrics unavailable", zap.Error(err))
	}
	return m
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CheckProcessInfo 采样当前进程的 RSS 与 CPU 占用
func (m *Monitor) CheckProcessInfo() {
	if m == nil || m.proc == nil {
		return
	}
	if memInfo, err := m.proc.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024)) // MB
	}
	if cpuPercent, err := m.proc.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100) // 保留两位小数
	}
}

// Start samples process metrics every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if m == nil {
		return
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckProcessInfo()
		}
	}
}

func (m *Monitor) Request(transport string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport).Inc()
}

func (m *Monitor) FrameProcessed(d time.Duration, faces int) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.facesDetected.Add(float64(faces))
	m.processing.Observe(d.Seconds())
}

func (m *Monitor) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

func (m *Monitor) FrameFailed(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown" // 标签不能为空
	}
	m.framesFailed.WithLabelValues(stage).Inc()
}
