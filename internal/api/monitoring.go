package api

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/config"
	"github.com/RedHatInsights/messaging-connector/internal/platform/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const readinessCheckTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency the service needs is usable
type ReadinessCheck func(ctx context.Context) error

type MonitoringServer struct {
	router          *mux.Router
	config          *config.Config
	readinessChecks map[string]ReadinessCheck
}

func NewMonitoringServer(r *mux.Router, cfg *config.Config) *MonitoringServer {
	return &MonitoringServer{
		router:          r,
		config:          cfg,
		readinessChecks: make(map[string]ReadinessCheck),
	}
}

func (s *MonitoringServer) AddReadinessCheck(name string, check ReadinessCheck) {
	s.readinessChecks[name] = check
}

func (s *MonitoringServer) Routes() {
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/liveness", s.handleLiveness()).Methods(http.MethodGet)
	s.router.HandleFunc("/readiness", s.handleReadiness()).Methods(http.MethodGet)

	if s.config.Profile {
		logger.Log.Warn("WARNING: Enabling the profiler endpoint!!")
		s.router.PathPrefix("/debug").Handler(http.DefaultServeMux)
	}
}

func (s *MonitoringServer) handleLiveness() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func (s *MonitoringServer) handleReadiness() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readinessCheckTimeout)
		defer cancel()

		for name, check := range s.readinessChecks {
			if err := check(ctx); err != nil {
				logger.Log.WithFields(logrus.Fields{"error": err, "check": name}).Warn("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}
