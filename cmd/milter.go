package cmd

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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/filter"
	"github.com/zpam/spamscan/pkg/logging"
	"github.com/zpam/spamscan/pkg/milter"
	"github.com/zpam/spamscan/pkg/profiler"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	milterNetwork string
	milterAddress string
	milterDebug   bool
	milterMetrics string
)

var milterCmd = &cobra.Command{
	Use:   "milter",
	Short: "Start milter server for Postfix/Sendmail integration",
	Long: `Start the spamscan milter server to integrate with Postfix or Sendmail.

The server listens on a TCP or Unix socket and scans every message as the MTA
receives it. Verdicts are added as headers and spam can optionally be rejected.

Examples:
  spamscan milter
  spamscan milter --config /etc/spamscan/config.yaml
  spamscan milter --network tcp --address 127.0.0.1:7357 --metrics 127.0.0.1:9357

For Postfix integration, add to main.cf:
  smtpd_milters = inet:127.0.0.1:7357
  non_smtpd_milters = inet:127.0.0.1:7357
  milter_default_action = accept`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("network") {
			cfg.Milter.Network = milterNetwork
		}
		if cmd.Flags().Changed("address") {
			cfg.Milter.Address = milterAddress
		}
		if cmd.Flags().Changed("metrics") {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Address = milterMetrics
		}
		if milterDebug {
			cfg.Logging.Level = "debug"
		}
		cfg.Milter.Enabled = true

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		defer logger.Sync()

		var opts []filter.Option
		var registry *prometheus.Registry
		if cfg.Metrics.Enabled {
			registry = prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics, err := profiler.NewMetrics(registry)
			if err != nil {
				return err
			}
			opts = append(opts, filter.WithMetrics(metrics))
		}

		scanner, err := newScanner(cfg, logger, opts...)
		if err != nil {
			return err
		}
		defer scanner.Close()

		server, err := milter.NewServer(cfg, scanner, logger)
		if err != nil {
			return fmt.Errorf("failed to create milter server: %w", err)
		}

		listener, err := net.Listen(cfg.Milter.Network, cfg.Milter.Address)
		if err != nil {
			return fmt.Errorf("failed to create listener: %w", err)
		}
		defer listener.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📧 spamscan milter listening on %s://%s\n", cfg.Milter.Network, cfg.Milter.Address)
		fmt.Fprintf(out, "⚡ Timeouts: read %dms, write %dms, detector %dms\n",
			cfg.Milter.ReadTimeoutMs, cfg.Milter.WriteTimeoutMs, cfg.Detectors.TimeoutMs)
		if cfg.Milter.RejectSpam {
			fmt.Fprintf(out, "🎯 Spam is rejected with %q\n", cfg.Milter.RejectMessage)
		} else {
			fmt.Fprintf(out, "🎯 Spam is tagged with %sStatus headers\n", cfg.Milter.SpamHeaderPrefix)
		}
		if registry != nil {
			fmt.Fprintf(out, "📊 Metrics on http://%s/metrics\n", cfg.Metrics.Address)
		}
		fmt.Fprintf(out, "🚀 Press Ctrl+C to stop\n\n")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			err := server.Serve(gctx, listener)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		if registry != nil {
			g.Go(func() error {
				return serveMetrics(gctx, cfg.Metrics.Address, registry, logger)
			})
		}

		err = g.Wait()
		stats := server.Stats()
		fmt.Fprintf(out, "\n🛑 Milter stopped after %d scans (%d sessions)\n", stats.Scans, stats.MilterCount)
		return err
	},
}

// serveMetrics exposes registry on /metrics until ctx is done
func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	logger.Info("metrics listening", zap.String("address", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server error: %w", err)
	}
}

func init() {
	milterCmd.Flags().StringVarP(&milterNetwork, "network", "n", "", "Network type (tcp or unix)")
	milterCmd.Flags().StringVarP(&milterAddress, "address", "a", "", "Bind address (e.g., 127.0.0.1:7357 or /tmp/spamscan.sock)")
	milterCmd.Flags().StringVar(&milterMetrics, "metrics", "", "Serve Prometheus metrics on this address")
	milterCmd.Flags().BoolVarP(&milterDebug, "debug", "d", false, "Enable debug logging")
}
