package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/backkem/v2g/internal/config"
	"github.com/backkem/v2g/pkg/metrics"
	"github.com/backkem/v2g/pkg/secc"
)

var (
	stationListen  string
	metricsListen  string
	stationTimeout time.Duration
)

// station: accept vehicles until interrupted.
func stationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "station",
		Short: "Run a charging station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := appCfg.Station
			if cmd.Flags().Changed("listen") {
				st.ListenAddr = stationListen
			}
			if cmd.Flags().Changed("metrics") {
				st.MetricsAddr = metricsListen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if stationTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, stationTimeout)
				defer cancel()
			}
			return runStation(ctx, cmd, st)
		},
	}
	cmd.Flags().StringVar(&stationListen, "listen", "", "TCP address for vehicles")
	cmd.Flags().StringVar(&metricsListen, "metrics", "", "HTTP address for /metrics (empty disables)")
	cmd.Flags().DurationVar(&stationTimeout, "timeout", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func runStation(ctx context.Context, cmd *cobra.Command, st config.Station) error {
	lf := appCfg.LoggerFactory()
	log := lf.NewLogger("v2g-station")

	resolver, err := appCfg.Resolver()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		return err
	}

	server, err := secc.NewServer(secc.ServerConfig{
		Station:       st.Offer,
		ListenAddr:    st.ListenAddr,
		MaxSessions:   st.MaxSessions,
		Secure:        st.Secure,
		Resolver:      resolver,
		Options:       appCfg.Options(),
		Metrics:       collector,
		Observer:      collector,
		LoggerFactory: lf,
	})
	if err != nil {
		return fmt.Errorf("create station: %w", err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("start station: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "station listening on %s\n", server.Addr())

	var httpServer *http.Server
	if st.MetricsAddr != "" {
		ln, err := net.Listen("tcp", st.MetricsAddr)
		if err != nil {
			_ = server.Stop()
			return fmt.Errorf("metrics listen: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %v", err)
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "metrics on http://%s/metrics\n", ln.Addr())
	}

	<-ctx.Done()
	log.Infof("shutting down: %v", context.Cause(ctx))

	var errs []error
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, httpServer.Shutdown(shutdownCtx))
	}
	errs = append(errs, server.Stop())
	return errors.Join(errs...)
}
