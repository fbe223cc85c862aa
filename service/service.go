package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
)

// Config selects which side servers run while a run is reported
type Config struct {
	HealthzEnabled bool
	HealthzHost    string
	HealthzPort    int

	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int
}

type Service struct {
	Config  Config
	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New(cfg Config) *Service {
	return &Service{
		Config:  cfg,
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
	}
}

func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	if s.Config.HealthzEnabled {
		addr := net.JoinHostPort(s.Config.HealthzHost, strconv.Itoa(s.Config.HealthzPort))
		log.Info("starting healthz server", "addr", addr)
		go func() {
			if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting healthz server", "err", err)
				metrics.RecordErrorDetails("error starting healthz server", err)
			}
		}()
	}

	if s.Config.MetricsEnabled {
		addr := net.JoinHostPort(s.Config.MetricsHost, strconv.Itoa(s.Config.MetricsPort))
		log.Info("starting metrics server", "addr", addr)
		go func() {
			if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("error starting metrics server", err)
			}
		}()
	}

	log.Info("service started")
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")
	if s.Config.HealthzEnabled {
		_ = s.Healthz.Shutdown()
		log.Info("healthz stopped")
	}
	if s.Config.MetricsEnabled {
		_ = s.Metrics.Shutdown()
		log.Info("metrics stopped")
	}
	log.Info("service stopped")
}
