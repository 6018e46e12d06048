package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appLog "civiccircle/internal/log"
)

var (
	remindersRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civic_reminders_registered_total",
		Help: "Reminders accepted into the local queue.",
	}, []string{"kind"})

	remindersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civic_reminders_rejected_total",
		Help: "Reminders refused because notifications are disabled.",
	})

	remindersDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civic_reminders_delivered_total",
		Help: "Reminders handed to a deliverer, by outcome.",
	}, []string{"outcome"})

	remindersPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civic_reminders_pending",
		Help: "Reminders waiting in the queue at the last dispatcher sync.",
	})
)

// MetricsHandler exposes the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ServeMetrics serves /metrics on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Handle("/metrics", MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("metrics listener starting", "listen", "http://"+addr+"/metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
