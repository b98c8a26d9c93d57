package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Swind/go-thread-affinity/config"
	"github.com/Swind/go-thread-affinity/core"
	promexport "github.com/Swind/go-thread-affinity/observability/prometheus"
	"github.com/Swind/go-thread-affinity/observability/otelsink"
	"github.com/Swind/go-thread-affinity/observability/zaplog"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Queue work, shut down and drain on the main goroutine",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "items",
				Aliases: []string{"n"},
				Value:   10,
				Usage:   "Number of callbacks to post",
				EnvVars: []string{"AFFINITY_ITEMS"},
			},
			&cli.DurationFlag{
				Name:    "item-delay",
				Value:   10 * time.Millisecond,
				Usage:   "How long each posted callback works",
				EnvVars: []string{"AFFINITY_ITEM_DELAY"},
			},
			&cli.DurationFlag{
				Name:    "grace",
				Usage:   "Shutdown grace period (overrides the config file)",
				EnvVars: []string{"AFFINITY_GRACE_PERIOD"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"AFFINITY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address while running",
				EnvVars: []string{"AFFINITY_METRICS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"AFFINITY_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "lock-os-thread",
				Usage:   "Pin the dispatch goroutine to its OS thread",
				EnvVars: []string{"AFFINITY_LOCK_OS_THREAD"},
			},
		},

		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	items := c.Int("items")
	if items < 0 {
		return cli.Exit("items must not be negative", 2)
	}

	zl, err := zaplog.NewZap(cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer func() { _ = zl.Sync() }()

	summary, err := runDemo(c.Context, cfg, demoOptions{
		items:     items,
		itemDelay: c.Duration("item-delay"),
		zap:       zl,
	})
	printSummary(c.App.Writer, summary)

	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	return nil
}

// loadConfig layers the config file, then explicitly set flags, over defaults.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if c.IsSet("grace") {
		cfg.Grace.Duration = c.Duration("grace")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("lock-os-thread") {
		cfg.LockOSThread = c.Bool("lock-os-thread")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

type demoOptions struct {
	items     int
	itemDelay time.Duration
	zap       *zap.Logger
}

type demoSummary struct {
	Posted    int
	Completed int64
	SendErr   error
	RunErr    error
	Stats     core.ContextStats
}

// runDemo must be called on the goroutine that should own the context.
func runDemo(ctx context.Context, cfg config.Config, opts demoOptions) (demoSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.zap == nil {
		opts.zap = zap.NewNop()
	}

	reg := prom.NewRegistry()
	exporter, err := promexport.NewMetricsExporter("affinity", reg, promexport.ExporterOptions{})
	if err != nil {
		return demoSummary{}, fmt.Errorf("metrics exporter: %w", err)
	}
	poller, err := promexport.NewSnapshotPoller(reg, 100*time.Millisecond)
	if err != nil {
		return demoSummary{}, fmt.Errorf("snapshot poller: %w", err)
	}

	cc := cfg.ContextConfig()
	cc.Logger = zaplog.New(opts.zap).Named("context")
	cc.Metrics = exporter
	cc.DiagnosticSink = core.MultiDiagnosticSink{
		zaplog.NewDiagnosticSink(opts.zap, cfg.Name),
		otelsink.New(cfg.Name),
	}
	stc := core.NewSingleThreadContextWithConfig(cfg.GracePeriod(), cc)
	defer stc.Close()

	poller.AddContext(stc.Name(), stc)
	poller.Start(ctx)
	defer poller.Stop()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				opts.zap.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var summary demoSummary
	var completed atomic.Int64
	for i := 0; i < opts.items; i++ {
		if err := stc.Post(func(any) {
			time.Sleep(opts.itemDelay)
			completed.Add(1)
		}, i); err != nil {
			return summary, fmt.Errorf("post item %d: %w", i, err)
		}
		summary.Posted++
	}

	// One blocking call from a goroutine that does not own the context.
	sendDone := make(chan error, 1)
	go func() {
		sendDone <- stc.Send(func(any) {
			opts.zap.Info("cross-goroutine send executed",
				zap.Int64("completed_so_far", completed.Load()))
		}, nil)
	}()

	stc.ShutDown()
	summary.RunErr = stc.Run()
	summary.SendErr = <-sendDone

	poller.CollectOnce()
	summary.Completed = completed.Load()
	summary.Stats = stc.Stats()
	return summary, summary.RunErr
}

func printSummary(w io.Writer, s demoSummary) {
	outcome := "drained"
	if s.RunErr != nil {
		outcome = "aborted: " + s.RunErr.Error()
	}
	send := "ok"
	if s.SendErr != nil {
		send = s.SendErr.Error()
	}

	fmt.Fprintf(w, "context:   %s\n", s.Stats.Name)
	fmt.Fprintf(w, "items:     %d/%d\n", s.Completed, s.Posted)
	fmt.Fprintf(w, "send:      %s\n", send)
	fmt.Fprintf(w, "executed:  %d\n", s.Stats.Executed)
	fmt.Fprintf(w, "rejected:  %d\n", s.Stats.Rejected)
	fmt.Fprintf(w, "discarded: %d\n", s.Stats.Discarded)
	fmt.Fprintf(w, "state:     %s\n", s.Stats.State)
	fmt.Fprintf(w, "outcome:   %s\n", outcome)
}
