package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// Mutations counts successful ledger and note changes by operation
	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betledger_mutations_total",
		Help: "Successful ledger and note mutations.",
	}, []string{"op"})

	// PersistFailures counts saves that failed and were kept in memory only
	PersistFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betledger_persist_failures_total",
		Help: "Failed writes to the storage slot.",
	}, []string{"slot"})

	// Bets is the current number of bets per result
	Bets = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "betledger_bets",
		Help: "Bets in the ledger by result.",
	}, []string{"result"})
)

// Register adds the collectors to reg
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Mutations, PersistFailures, Bets} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

type HealthFunc func(ctx context.Context) error

// Handler serves /metrics and /healthz
func Handler(healthFn HealthFunc) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// StartServer serves Handler on port in a goroutine. Failures other than
// a clean shutdown, such as the port being taken, are logged.
func StartServer(port string, healthFn HealthFunc, log *zap.Logger) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: Handler(healthFn),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_server_failed", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}()

	return srv
}
