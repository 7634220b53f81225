package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stablechunk"

var (
	// Registry is a dedicated Prometheus registry for all stablechunk metrics.
	Registry = prometheus.NewRegistry()

	// ChunksEmittedTotal counts chunks produced, grouped by which selector
	// produced them (offline | streaming | hybrid_replay | hybrid_micro).
	ChunksEmittedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_emitted_total",
			Help:      "Total chunks emitted, grouped by selector",
		},
		[]string{"selector"},
	)

	// SignalExtractionDurationNs measures signal extraction cost in
	// nanoseconds, amortized per byte when recorded from a batch feed.
	SignalExtractionDurationNs = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signal_extraction_duration_ns",
			Help:      "Signal extraction cost in nanoseconds per byte, amortized over a Feed call",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 12),
		},
	)

	// BoundaryTriggerTotal counts streaming commits by trigger kind (hard | soft | final).
	BoundaryTriggerTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_trigger_total",
			Help:      "Total streaming chunk commits, grouped by trigger kind",
		},
		[]string{"kind"},
	)

	// CandidateRingSize gauges the live candidate count held by a streaming chunker.
	CandidateRingSize = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_ring_size",
			Help:      "Number of candidates currently held in the streaming candidate ring",
		},
	)

	// HybridGuardBandBytes gauges the size of the most recent hybrid re-chunk's guard band.
	HybridGuardBandBytes = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hybrid_guard_band_bytes",
			Help:      "Width in bytes of the guard band used by the most recent hybrid re-chunk",
		},
	)

	// Up is a liveness gauge for long-running subcommands (watch).
	Up = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "1 if the watch process is running and healthy",
		},
	)
)

func init() {
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	Registry.MustRegister(prometheus.NewGoCollector())
}

// ObserveChunkEmitted increments the emitted-chunk counter for a selector.
func ObserveChunkEmitted(selector string) {
	if selector == "" {
		selector = "unknown"
	}
	ChunksEmittedTotal.WithLabelValues(selector).Inc()
}

// ObserveSignalExtraction records the duration of a signal extraction call in nanoseconds.
func ObserveSignalExtraction(durationNs float64) {
	if durationNs < 0 {
		return
	}
	SignalExtractionDurationNs.Observe(durationNs)
}

// ObserveBoundaryTrigger records a streaming commit by trigger kind.
func ObserveBoundaryTrigger(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	BoundaryTriggerTotal.WithLabelValues(kind).Inc()
}

// SetCandidateRingSize reports the current candidate count of a streaming chunker.
func SetCandidateRingSize(size int) {
	if size < 0 {
		size = 0
	}
	CandidateRingSize.Set(float64(size))
}

// SetHybridGuardBandBytes reports the guard band width of the most recent hybrid re-chunk.
func SetHybridGuardBandBytes(bytes int) {
	if bytes < 0 {
		bytes = 0
	}
	HybridGuardBandBytes.Set(float64(bytes))
}

// SetUp toggles the liveness gauge.
func SetUp(healthy bool) {
	if healthy {
		Up.Set(1)
		return
	}
	Up.Set(0)
}

// Serve starts the /metrics HTTP endpoint on the provided address.
func Serve(ctx context.Context, addr string, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	srv := &http.Server{Addr: addr, Handler: mux}

	idleClosed := make(chan struct{})
	go func() {
		defer close(idleClosed)
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Printf("[Metrics] Prometheus endpoint listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-idleClosed
		return nil
	}

	return err
}
