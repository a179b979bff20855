// Package integration provides test infrastructure for end-to-end
// conversations between a charging station and a vehicle.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/backkem/v2g/pkg/evcc"
	"github.com/backkem/v2g/pkg/metrics"
	"github.com/backkem/v2g/pkg/secc"
	"github.com/backkem/v2g/pkg/transport"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// TestPair holds a running charging station and the shared metrics of
// every vehicle that talks to it.
//
// Example usage:
//
//	pair := NewTestPair(t, DefaultTestPairConfig())
//	defer pair.Close()
//	client, err := pair.Charge(evcc.Config{EVCCID: evccID})
type TestPair struct {
	// Server is the charging station under test.
	Server *secc.Server

	// Metrics observes both parties.
	Metrics *metrics.Collector

	// Registry holds Metrics.
	Registry *prometheus.Registry

	t             *testing.T
	config        TestPairConfig
	loggerFactory logging.LoggerFactory
}

// TestPairConfig configures the test pair creation.
type TestPairConfig struct {
	// Station describes the charging station offer.
	Station secc.Config

	// ListenAddr is the TCP address of the station.
	ListenAddr string

	// Timeout bounds each conversation.
	// Defaults to 5 seconds.
	Timeout time.Duration

	// LoggerFactory for logging. If nil, uses DefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory
}

// DefaultTestPairConfig returns default configuration for test pairs.
func DefaultTestPairConfig() TestPairConfig {
	return TestPairConfig{
		Station: secc.Config{
			EVSEID:        "DE*TST*E0001",
			TransferModes: []string{"AC_three_phase_core", "DC_extended"},
		},
		ListenAddr: "127.0.0.1:0",
		Timeout:    5 * time.Second,
	}
}

// NewTestPair starts a charging station listening on TCP.
func NewTestPair(t *testing.T, config TestPairConfig) *TestPair {
	t.Helper()

	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	server, err := secc.NewServer(secc.ServerConfig{
		Station:       config.Station,
		ListenAddr:    config.ListenAddr,
		Metrics:       collector,
		Observer:      collector,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	return &TestPair{
		Server:        server,
		Metrics:       collector,
		Registry:      registry,
		t:             t,
		config:        config,
		loggerFactory: loggerFactory,
	}
}

// Charge runs one vehicle conversation against the station over TCP.
func (p *TestPair) Charge(config evcc.Config) (*evcc.Client, error) {
	p.t.Helper()

	config.Metrics = p.Metrics
	config.Observer = p.Metrics
	if config.LoggerFactory == nil {
		config.LoggerFactory = p.loggerFactory
	}
	client, err := evcc.NewClient(config)
	if err != nil {
		p.t.Fatalf("NewClient() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	conn, err := transport.Dial(ctx, p.Server.Addr().String(), transport.ConnConfig{LoggerFactory: p.loggerFactory})
	if err != nil {
		p.t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	return client, client.Run(ctx, conn)
}

// Close stops the station.
func (p *TestPair) Close() {
	if err := p.Server.Stop(); err != nil {
		p.t.Errorf("Stop() error = %v", err)
	}
}
