package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// queueDepth, overflowCount and drainLatency are the gauges/counter/
// histogram this package's /metrics endpoint exports, mirroring the
// buffer's internal bookkeeping in Prometheus form.
var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dqguard_telemetry_queue_depth",
		Help: "Current number of pending metric uploads in the telemetry buffer.",
	})
	overflowCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dqguard_telemetry_buffer_overflow_total",
		Help: "Total pushes rejected because the telemetry buffer was at capacity.",
	})
	drainLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "dqguard_telemetry_drain_latency_seconds",
		Help: "Wall-clock time spent draining and forwarding one batch of buffered metrics.",
	})
)

func init() {
	prometheus.MustRegister(queueDepth, overflowCount, drainLatency)
}

// Server exposes /metrics (Prometheus text format) and /healthz over
// HTTP.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
}

func NewServer(addr string) *Server {
	router := mux.NewRouter()
	s := &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		router:     router,
	}
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully within 5 seconds.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
