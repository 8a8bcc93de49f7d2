package daemon

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inshproject/insh/internal/logger"
)

// Metrics aggregates the daemon's prometheus instruments. A nil *Metrics is
// valid and records nothing, so the dispatch path never branches on
// configuration.
type Metrics struct {
	clientsConnected prometheus.Gauge
	requestsReceived prometheus.Counter
	dispatched       *prometheus.CounterVec
	disconnects      prometheus.Counter
	workerFaults     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inshd",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients.",
		}),
		requestsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inshd",
			Name:      "requests_received_total",
			Help:      "Total requests accepted from clients.",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inshd",
			Name:      "requests_dispatched_total",
			Help:      "Requests dispatched, partitioned by worker.",
		}, []string{"worker"}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inshd",
			Name:      "client_disconnects_total",
			Help:      "Total client disconnections observed.",
		}),
		workerFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inshd",
			Name:      "worker_faults_total",
			Help:      "Handler panics recovered in workers.",
		}),
	}
	reg.MustRegister(
		m.clientsConnected,
		m.requestsReceived,
		m.dispatched,
		m.disconnects,
		m.workerFaults,
	)
	return m
}

func (m *Metrics) observeConnect() {
	if m == nil {
		return
	}
	m.clientsConnected.Inc()
}

func (m *Metrics) observeRequest() {
	if m == nil {
		return
	}
	m.requestsReceived.Inc()
}

func (m *Metrics) observeDispatch(worker int) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(strconv.Itoa(worker)).Inc()
}

func (m *Metrics) observeDisconnect() {
	if m == nil {
		return
	}
	m.clientsConnected.Dec()
	m.disconnects.Inc()
}

func (m *Metrics) observeWorkerFault() {
	if m == nil {
		return
	}
	m.workerFaults.Inc()
}

// metricsServer exposes the registry over HTTP when an address is
// configured.
type metricsServer struct {
	srv *http.Server
	log *logger.Logger
}

func newMetricsServer(addr string, reg *prometheus.Registry, log *logger.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &metricsServer{
		srv: &http.Server{Addr: addr, Handler: mux},
		log: log.WithPrefix("metrics"),
	}
}

func (m *metricsServer) start() {
	go func() {
		m.log.Info("serving metrics on %s", m.srv.Addr)
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Error("metrics server failed: %v", err)
		}
	}()
}

func (m *metricsServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.log.Error("metrics server shutdown: %v", err)
	}
}
