package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/plexsphere/datauploader/internal/frame"
	"github.com/plexsphere/datauploader/internal/job"
	"github.com/plexsphere/datauploader/internal/metric"
	"github.com/plexsphere/datauploader/internal/stats"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 5 * time.Second

var (
	uploadKind      string
	uploadName      string
	uploadMeta      map[string]string
	uploadSeparator string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a delimited file as one metric",
	Long: "Read a delimited file with a header row (or stdin when no file is given)\n" +
		"and deliver it through every configured client as a metric of the given kind.",
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadKind, "type", string(metric.KindMetric), "metric kind (see 'datauploader kinds')")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "metric name")
	uploadCmd.Flags().StringToStringVar(&uploadMeta, "meta", nil, "additional metric metadata as key=value pairs")
	uploadCmd.Flags().StringVar(&uploadSeparator, "separator", "\t", "input field separator")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := job.ParseConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("datauploader upload: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := setupLogger(cfg.LogLevel)

	sep, size := utf8.DecodeRuneInString(uploadSeparator)
	if size == 0 || size != len(uploadSeparator) {
		return fmt.Errorf("datauploader upload: separator must be a single character, got %q", uploadSeparator)
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("datauploader upload: %w", err)
		}
		defer f.Close()
		in = f
	}
	data, err := frame.ReadDelimited(in, sep)
	if err != nil {
		return fmt.Errorf("datauploader upload: read input: %w", err)
	}

	reg := prometheus.NewRegistry()
	st, err := stats.New(reg)
	if err != nil {
		return fmt.Errorf("datauploader upload: %w", err)
	}
	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, reg, logger)
		defer stop()
	}

	logger.Info("starting datauploader", "version", buildVersion, "clients", len(cfg.Clients))

	j, err := job.New(*cfg, buildVersion, st, logger)
	if err != nil {
		return fmt.Errorf("datauploader upload: %w", err)
	}

	meta := make(map[string]string, len(uploadMeta)+1)
	for k, v := range uploadMeta {
		meta[k] = v
	}
	if uploadName != "" {
		meta["name"] = uploadName
	}

	m, err := j.GetMetric(metric.Kind(uploadKind), meta)
	if err != nil {
		_ = j.Close()
		return fmt.Errorf("datauploader upload: %w", err)
	}
	putErr := m.Put(data)
	closeErr := j.Close()
	if err := errors.Join(putErr, closeErr); err != nil {
		return fmt.Errorf("datauploader upload: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows as %s %s\n", j.JobID(), data.Len(), uploadKind, m.LocalID)
	return nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
