package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luckerby/allocmem/internal/alloc"
	"github.com/luckerby/allocmem/internal/logging"
	"github.com/luckerby/allocmem/internal/memstats"
	"github.com/luckerby/allocmem/internal/metrics"
	"github.com/luckerby/allocmem/pkg/config"
)

var (
	configPath      = flag.String("config", "configs/allocmem.yaml", "Path to configuration file")
	blockSizeMB     = flag.Int("block-size-mb", 1, "Size of each allocated block in MB")
	touchFillRatio  = flag.Float64("touch-fill-ratio", 1.0, "Fraction of each block's pages to touch, within [0,1]")
	delayMs         = flag.Int("delay-ms", 0, "Pause between successive block allocations in ms")
	maxCommitMB     = flag.Int("max-commit-mb", -1, "Stop once this many MB are committed; 0 runs forever")
	breakAfterStart = flag.Bool("break-after-start", false, "Wait for Enter before allocating, to observe the baseline footprint")
	metricsListen   = flag.String("metrics-listen", "", "Expose Prometheus metrics on this address (e.g. :9551)")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Early error before logging is initialized
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Command line flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "block-size-mb":
			cfg.Alloc.BlockSizeMB = *blockSizeMB
		case "touch-fill-ratio":
			cfg.Alloc.TouchFillRatio = *touchFillRatio
		case "delay-ms":
			cfg.Alloc.DelayMs = *delayMs
		case "max-commit-mb":
			cfg.Alloc.MaxCommitMB = *maxCommitMB
		case "break-after-start":
			cfg.Alloc.BreakAfterStart = *breakAfterStart
		case "metrics-listen":
			cfg.Metrics.Enabled = true
			cfg.Metrics.ListenAddr = *metricsListen
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging system
	runID := logging.NewRunID()
	logger, err := logging.InitializeFromConfig(runID, cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info(ctx, logging.ComponentMain, logging.ActionStart, "allocmem starting", map[string]interface{}{
		"run_id":        runID,
		"pid":           os.Getpid(),
		"config_file":   *configPath,
		"block_size_mb": cfg.Alloc.BlockSizeMB,
		"max_commit_mb": cfg.Alloc.MaxCommitMB,
	})

	// Wire the shutdown signal before any allocation happens. The buffered
	// channel plus context cancellation keep the request observable even if
	// the signal lands before the loop starts waiting.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logging.Info(ctx, logging.ComponentMain, logging.ActionShutdown, "Shutdown signal received", map[string]interface{}{
			"signal": sig.String(),
		})
		cancel()
	}()

	// Optional Prometheus listener
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				logging.Error(ctx, logging.ComponentMetrics, logging.ActionStart, "Metrics listener failed", err)
			}
		}()
	}

	// The stats provider is optional: a failure to build one only loses the
	// periodic snapshots, never the run itself.
	var opts []alloc.Option
	if provider, err := memstats.NewProcessProvider(); err != nil {
		logging.Warn(ctx, logging.ComponentStats, logging.ActionStart, "Process memory statistics unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		opts = append(opts, alloc.WithStatsProvider(provider))
	}

	engine, err := alloc.New(alloc.Config{
		BlockSizeMB:         cfg.Alloc.BlockSizeMB,
		TouchFillRatio:      cfg.Alloc.TouchFillRatio,
		DelayMs:             cfg.Alloc.DelayMs,
		MaxCommitMB:         cfg.Alloc.MaxCommitMB,
		StatsIntervalBlocks: cfg.Alloc.StatsIntervalBlocks,
	}, opts...)
	if err != nil {
		logging.Fatal(ctx, logging.ComponentMain, logging.ActionStart, "Invalid allocation configuration", err)
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if cfg.Alloc.BreakAfterStart {
		fmt.Printf("PID %d: press Enter to start allocating...\n", os.Getpid())
		bufio.NewReader(os.Stdin).ReadString('\n')
	}

	if err := engine.Run(ctx); err != nil {
		logging.Error(ctx, logging.ComponentMain, logging.ActionStop, "Allocation run failed", err)
		os.Exit(1)
	}

	logging.Info(ctx, logging.ComponentMain, logging.ActionStop, "allocmem exiting", map[string]interface{}{
		"blocks_allocated": engine.BlocksAllocated(),
	})
}
