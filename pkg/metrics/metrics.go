// Package metrics exposes extraction counters for Prometheus
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yareviews/pkg/logger"
)

var (
	Extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yareviews", Name: "extractions_total", Help: "Extraction calls by outcome."},
		[]string{"mode", "outcome"}, // outcome: ok|not_found|suspected_block|transport|unexpected
	)
	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yareviews", Name: "extraction_duration_seconds",
			Help:    "Wall time of one extraction call.",
			Buckets: []float64{5, 10, 20, 40, 80, 160, 320, 640},
		},
		[]string{"mode"},
	)
	ReviewsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "yareviews", Name: "reviews_extracted_total", Help: "Review records returned."},
	)
	Rotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "yareviews", Name: "session_rotations_total", Help: "Browser session rotations."},
		[]string{"reason"}, // reason: threshold|suspected_block|transport|manual
	)
	SessionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "yareviews", Name: "sessions_open", Help: "Browser sessions currently running."},
	)
)

// InitRegistry returns a registry holding every yareviews collector
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Extractions, ExtractionDuration, ReviewsExtracted, Rotations, SessionsOpen)
	return reg
}

// Handler serves reg in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log logger.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.InfoWithFields("Metrics server listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
}

// ObserveExtraction records one finished extraction call
func ObserveExtraction(mode, outcome string, reviews int, dur time.Duration) {
	Extractions.WithLabelValues(mode, outcome).Inc()
	ExtractionDuration.WithLabelValues(mode).Observe(dur.Seconds())
	ReviewsExtracted.Add(float64(reviews))
}

// ObserveRotation records a session replacement
func ObserveRotation(reason string) {
	Rotations.WithLabelValues(reason).Inc()
}
