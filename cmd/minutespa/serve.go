package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/minutespa/minutespa/internal/config"
	"github.com/minutespa/minutespa/pkg/appstate"
	"github.com/minutespa/minutespa/pkg/kvserver"
	"github.com/minutespa/minutespa/pkg/telemetry"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the medium and state stores over HTTP",
		Long: `Serve the configured medium and state stores over HTTP.

Other processes can use this server as a "remote" medium, read and
write store keys, and follow key changes over a websocket.

Examples:
  minutespa serve
  minutespa serve --port=8080
  minutespa serve --medium=sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	b, err := openMedium(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	opts := []appstate.Option{
		appstate.WithMedium(b.medium),
		appstate.WithTimeout(cfg.Timeout()),
	}
	serverConfig := kvserver.Config{
		Address:         cfg.Address(),
		CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		ShutdownTimeout: cfg.ShutdownTimeout(),
	}
	if cfg.Server.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))
		opts = append(opts, appstate.WithMetrics(metrics))
		serverConfig.Gatherer = reg
		serverConfig.Metrics = metrics
	}

	srv := kvserver.New(serverConfig, b.medium, appstate.NewRegistry(opts...))

	w := cmd.OutOrStdout()
	printBanner(w)
	info(w, "serve")
	info(w, "")
	success(w, "Listening on %s", cfg.URL())
	info(w, "Medium: %s", cfg.State.Medium)
	if cfg.Server.Metrics {
		info(w, "Metrics: %s/metrics", cfg.URL())
	}

	return srv.Run(ctx)
}

// originChecker builds a websocket origin check from an allow list. An empty
// list keeps the same-origin default.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")]
	}
}
