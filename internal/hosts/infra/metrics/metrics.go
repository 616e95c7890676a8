// Package metrics exposes update cycle counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haukened/auto-hosts/internal/hosts/common/log"
	"github.com/haukened/auto-hosts/internal/hosts/domain"
)

const namespace = "auto_hosts"

// Recorder counts cycles by outcome and tracks their duration.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	reg        *prom.Registry
	cycles     *prom.CounterVec
	duration   prom.Histogram
	lastCycle  prom.Gauge
	lastChange prom.Gauge
	connected  prom.Gauge
}

// NewRecorder registers the cycle metrics on reg, or on a fresh registry when reg is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Update cycles by outcome",
		}, []string{"outcome"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of update cycles",
			Buckets:   prom.DefBuckets,
		}),
		lastCycle: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle",
		}),
		lastChange: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_change_timestamp_seconds",
			Help:      "Unix time of the last hosts file write",
		}),
		connected: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 when the last cycle saw an SSID, 0 otherwise",
		}),
	}
	// Pre-create every outcome so absent series read as zero.
	for _, o := range []domain.Outcome{
		domain.OutcomeNoChange,
		domain.OutcomeUpdated,
		domain.OutcomeCleared,
		domain.OutcomeSkippedEmpty,
		domain.OutcomeFailed,
	} {
		r.cycles.WithLabelValues(o.String())
	}
	reg.MustRegister(r.cycles, r.duration, r.lastCycle, r.lastChange, r.connected)
	return r
}

// ObserveCycle records one cycle report.
func (r *Recorder) ObserveCycle(rep domain.Report) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(rep.Outcome.String()).Inc()
	r.duration.Observe(rep.Duration.Seconds())

	ts := float64(rep.At.Add(rep.Duration).Unix())
	r.lastCycle.Set(ts)
	if rep.Changed {
		r.lastChange.Set(ts)
	}
	if rep.Outcome == domain.OutcomeFailed {
		return
	}
	if rep.Connected() {
		r.connected.Set(1)
	} else {
		r.connected.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(map[string]any{"addr": addr}, "Metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
