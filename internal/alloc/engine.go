// Package alloc drives the allocation loop: it materializes fixed-size
// blocks, touches a configurable fraction of their pages, and retains every
// block for the life of the process so the committed memory stays resident.
package alloc

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/luckerby/allocmem/internal/block"
	"github.com/luckerby/allocmem/internal/memstats"
)

// Unbounded is the target block count of a run with no commit ceiling.
const Unbounded = -1

// defaultRegistryCap pre-sizes the block registry for unbounded runs so
// early append growth does not distort the observed memory profile.
const defaultRegistryCap = 64

// Config holds the validated inputs of one allocation run.
type Config struct {
	BlockSizeMB         int     // size of each allocation unit
	TouchFillRatio      float64 // fraction of each block's pages touched, 0..1
	DelayMs             int     // pause between successive block allocations
	MaxCommitMB         int     // stop condition; 0 runs forever
	StatsIntervalBlocks int     // blocks between memory statistic snapshots
}

// Engine owns the block registry and runs the allocate/touch/report cycle.
// It is driven by a single goroutine; shutdown is observed only through the
// context passed to Run.
type Engine struct {
	cfg              Config
	elementsPerBlock int
	target           int
	blocks           [][]int32
	stats            memstats.Provider
	out              io.Writer

	allocatedBytes uint64
	touchedBytes   uint64
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithStatsProvider injects the process memory statistics source queried
// every StatsIntervalBlocks blocks.
func WithStatsProvider(p memstats.Provider) Option {
	return func(e *Engine) { e.stats = p }
}

// WithOutput redirects the progress report, which defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// New validates the configuration and prepares an engine. A block size
// outside the legal range is a fatal configuration error: no allocation is
// ever attempted for it.
func New(cfg Config, opts ...Option) (*Engine, error) {
	elements, err := block.ElementsPerBlock(cfg.BlockSizeMB)
	if err != nil {
		return nil, err
	}
	if cfg.TouchFillRatio < 0 || cfg.TouchFillRatio > 1 {
		return nil, fmt.Errorf("touch fill ratio must be within [0,1], got %g", cfg.TouchFillRatio)
	}
	if cfg.DelayMs < 0 {
		return nil, fmt.Errorf("delay must be non-negative, got %d ms", cfg.DelayMs)
	}
	if cfg.MaxCommitMB < 0 {
		return nil, fmt.Errorf("max commit must be non-negative, got %d MB", cfg.MaxCommitMB)
	}
	if cfg.StatsIntervalBlocks <= 0 {
		cfg.StatsIntervalBlocks = 10
	}

	target := TargetBlocks(cfg.MaxCommitMB, cfg.BlockSizeMB)
	capacity := target
	if target == Unbounded {
		capacity = defaultRegistryCap
	}

	e := &Engine{
		cfg:              cfg,
		elementsPerBlock: elements,
		target:           target,
		blocks:           make([][]int32, 0, capacity),
		out:              os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TargetBlocks converts a commit ceiling into a block count. A ceiling that
// is not an exact multiple of the block size rounds up, so the committed
// total may slightly exceed the ceiling rather than fall short of it.
func TargetBlocks(maxCommitMB, blockSizeMB int) int {
	if maxCommitMB == 0 {
		return Unbounded
	}
	return (maxCommitMB + blockSizeMB - 1) / blockSizeMB
}

// TargetBlockCount returns the derived block target, or Unbounded.
func (e *Engine) TargetBlockCount() int {
	return e.target
}

// BlocksAllocated returns how many blocks the registry currently retains.
func (e *Engine) BlocksAllocated() int {
	return len(e.blocks)
}

// ElementsPerBlock returns the element count each block is allocated with.
func (e *Engine) ElementsPerBlock() int {
	return e.elementsPerBlock
}

// Run executes the allocation loop and then parks until ctx is cancelled.
//
// Bounded runs allocate exactly the target and wait for the shutdown signal
// afterwards. Unbounded runs check for shutdown only at the top of each
// iteration; an in-progress block always completes. An allocation that the
// host cannot satisfy is deliberately not caught: running out of memory is
// the expected way a run discovers the practical ceiling of its environment.
func (e *Engine) Run(ctx context.Context) error {
	e.reportStartup(ctx)

	delay := time.Duration(e.cfg.DelayMs) * time.Millisecond
	for blockNo := 0; e.target == Unbounded || blockNo < e.target; blockNo++ {
		if e.target == Unbounded {
			select {
			case <-ctx.Done():
				e.reportShutdown(ctx)
				return nil
			default:
			}
		}

		// No pause before the very first block.
		if blockNo != 0 && delay > 0 {
			time.Sleep(delay)
		}

		buf := make([]int32, e.elementsPerBlock)
		touched, digest := touch(buf, e.cfg.TouchFillRatio)

		// Retaining the block is what keeps its pages from being reclaimed.
		e.blocks = append(e.blocks, buf)

		e.reportBlock(ctx, blockNo, touched, digest)

		if (blockNo+1)%e.cfg.StatsIntervalBlocks == 0 {
			e.reportStats(ctx)
		}
	}

	e.reportCompletion(ctx)

	// Hold the registry resident and inspectable until the host asks us to
	// go away; the process must still exit through its normal path.
	<-ctx.Done()
	e.reportShutdown(ctx)
	return nil
}
