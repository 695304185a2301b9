// Command visiora-replay drives a real tracking agent through a scripted
// page session, sending batches to the configured collector.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/visiora/visiora-agent/internal/metrics"
	"github.com/visiora/visiora-agent/internal/scenario"
	"github.com/visiora/visiora-agent/pkg/tracker"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to scenario YAML (required)")
	configPath := flag.String("config", "", "tracker config YAML; overrides the scenario's tracker block")
	drain := flag.Duration("drain", 10*time.Second, "how long to wait for pending deliveries on shutdown")
	showMetrics := flag.Bool("metrics", false, "print delivery metrics after the run")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *scenarioPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*scenarioPath, *configPath, *drain, *showMetrics, logger); err != nil {
		logger.Error("replay failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(scenarioPath, configPath string, drain time.Duration, showMetrics bool, logger *slog.Logger) error {
	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	cfg := sc.Tracker
	if configPath != "" {
		if cfg, err = tracker.LoadConfig(configPath); err != nil {
			return err
		}
	}

	var reader *sdkmetric.ManualReader
	if showMetrics {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer provider.Shutdown(context.Background())
		otel.SetMeterProvider(provider)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	local, closeStorage, err := sc.Storage.OpenStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	win := sc.Window(local)
	agent, err := tracker.Init(cfg, win, tracker.WithMetrics(metrics.NewRecorder()))
	if err != nil {
		return err
	}
	ids := agent.IDs()
	logger.Info("replaying scenario",
		slog.String("scenario", scenarioPath),
		slog.Int("steps", len(sc.Steps)),
		slog.String("visitor_id", ids.VisitorID),
		slog.String("session_id", ids.SessionID))

	runner := scenario.NewRunner(win, agent)
	runner.OnStep = func(i int, s scenario.Step) {
		logger.Info("step", slog.Int("n", i+1), slog.String("kind", s.Kind()))
	}
	runErr := runner.Run(ctx, sc.Steps)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := agent.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending deliveries abandoned", slog.String("error", err.Error()))
	}

	if reader != nil {
		if err := printMetrics(reader); err != nil {
			return err
		}
	}
	return runErr
}

func printMetrics(reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				fmt.Printf("%-28s %d\n", m.Name, total)
			case metricdata.Histogram[int64]:
				var count uint64
				var sum int64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				fmt.Printf("%-28s count=%d sum=%d\n", m.Name, count, sum)
			}
		}
	}
	return nil
}
