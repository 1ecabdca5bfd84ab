package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibfilter/internal/webapp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the filter page and JSON API",
	Long: `Serve starts an HTTP server with the BibTeX filter page at /, the form
action at POST /filter, a JSON API at POST /api/filter, a health check at
/healthz and Prometheus metrics at /metrics.

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Int("rate-limit", 60, "filter requests per client IP per minute (0 disables)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.rate_limit_per_min", serveCmd.Flags().Lookup("rate-limit"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := webapp.NewServer(webapp.Options{
		Server:   cfg.Server,
		Defaults: cfg.Filter,
		Factory:  webapp.NewFilter,
		Logger:   logger,
		Registry: reg,
		Version:  version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
