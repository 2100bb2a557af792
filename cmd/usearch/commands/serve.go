package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve <index>",
	Short: "Serve an index over HTTP",
	Long: `Serve an index over HTTP. An existing file is loaded; otherwise an empty
index is created from --config and the flags, and saved to the file on
shutdown. Prometheus metrics are exposed on /metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		path := args[0]

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts := append(indexOptions(), usearch.WithMetricsCollector(usearch.NewPrometheusCollector(reg, "usearch")))

		idx, err := openOrCreate(cmd, path, opts)
		if err != nil {
			return err
		}

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.New(idx, server.WithGatherer(reg)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		slog.Info("serving index", "addr", addr, "path", path, "size", idx.Len())

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := idx.Save(path); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		return nil
	},
}

// openOrCreate loads the index at path, or creates an empty one when no
// snapshot exists there.
func openOrCreate(cmd *cobra.Command, path string, opts []usearch.Option) (*usearch.Index, error) {
	r, ok, err := usearch.Restore(path, false, opts...)
	if err != nil {
		return nil, err
	}
	if ok {
		return r.(*usearch.Index), nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s exists but is not a readable index", path)
	}

	cfg, err := indexConfig(cmd, 0)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return usearch.New(cfg, opts...)
}

func init() {
	addIndexFlags(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}
