package alloc

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/luckerby/allocmem/internal/block"
	"github.com/luckerby/allocmem/internal/logging"
	"github.com/luckerby/allocmem/internal/metrics"
)

func (e *Engine) blockBytes() uint64 {
	return uint64(e.cfg.BlockSizeMB) * block.BytesPerMB
}

func (e *Engine) reportStartup(ctx context.Context) {
	if e.target == Unbounded {
		fmt.Fprintf(e.out, "🚀 Allocating %d MB blocks indefinitely (no commit ceiling), touching %.0f%% of each\n",
			e.cfg.BlockSizeMB, e.cfg.TouchFillRatio*100)
	} else {
		fmt.Fprintf(e.out, "🚀 Allocating %d block(s) of %d MB (commit ceiling %d MB), touching %.0f%% of each\n",
			e.target, e.cfg.BlockSizeMB, e.cfg.MaxCommitMB, e.cfg.TouchFillRatio*100)
	}

	logging.Info(ctx, logging.ComponentAlloc, logging.ActionStart, "Allocation loop starting", map[string]interface{}{
		"block_size_mb":    e.cfg.BlockSizeMB,
		"elements_per_blk": e.elementsPerBlock,
		"touch_fill_ratio": e.cfg.TouchFillRatio,
		"delay_ms":         e.cfg.DelayMs,
		"max_commit_mb":    e.cfg.MaxCommitMB,
		"target_blocks":    e.target,
	})
}

func (e *Engine) reportBlock(ctx context.Context, blockNo, touched int, digest uint64) {
	e.allocatedBytes += e.blockBytes()
	e.touchedBytes += uint64(touched) * pageBytes

	metrics.BlocksAllocated.Inc()
	metrics.AllocatedBytes.Add(float64(e.blockBytes()))
	metrics.TouchedBytes.Add(float64(touched) * pageBytes)

	fmt.Fprintf(e.out, "block #%d allocated: size=%s touched=%.0f%% total_allocated=%s total_touched=%s\n",
		blockNo, humanize.IBytes(e.blockBytes()), e.cfg.TouchFillRatio*100,
		humanize.IBytes(e.allocatedBytes), humanize.IBytes(e.touchedBytes))

	logging.Debug(ctx, logging.ComponentAlloc, logging.ActionAllocate, "Block allocated and touched", map[string]interface{}{
		"block_no":         blockNo,
		"touched_elements": touched,
		"touch_digest":     fmt.Sprintf("%016x", digest),
		"total_allocated":  e.allocatedBytes,
		"total_touched":    e.touchedBytes,
	})
}

func (e *Engine) reportStats(ctx context.Context) {
	if e.stats == nil {
		return
	}

	snap, err := e.stats.Snapshot()
	if err != nil {
		logging.Warn(ctx, logging.ComponentStats, logging.ActionReport, "Failed to read process memory statistics", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	metrics.ResidentBytes.Set(float64(snap.ResidentBytes))
	metrics.VirtualBytes.Set(float64(snap.VirtualBytes))
	metrics.HeapAllocBytes.Set(float64(snap.HeapAllocBytes))
	metrics.GCCycles.Set(float64(snap.GCCycles))

	fmt.Fprintf(e.out, "stats: resident=%s virtual=%s heap_alloc=%s gc_cycles=%d\n",
		humanize.IBytes(snap.ResidentBytes), humanize.IBytes(snap.VirtualBytes),
		humanize.IBytes(snap.HeapAllocBytes), snap.GCCycles)

	logging.Info(ctx, logging.ComponentStats, logging.ActionReport, "Process memory snapshot", map[string]interface{}{
		"resident_bytes":   snap.ResidentBytes,
		"virtual_bytes":    snap.VirtualBytes,
		"heap_alloc_bytes": snap.HeapAllocBytes,
		"heap_sys_bytes":   snap.HeapSysBytes,
		"gc_cycles":        snap.GCCycles,
	})
}

func (e *Engine) reportCompletion(ctx context.Context) {
	fmt.Fprintf(e.out, "✅ Completed: %d block(s), %s committed; waiting for shutdown signal\n",
		len(e.blocks), humanize.IBytes(e.allocatedBytes))

	logging.Info(ctx, logging.ComponentAlloc, logging.ActionStop, "Allocation target reached", map[string]interface{}{
		"blocks_allocated": len(e.blocks),
		"total_allocated":  e.allocatedBytes,
	})
}

func (e *Engine) reportShutdown(ctx context.Context) {
	// One last look at the footprint before the registry is released at exit.
	e.reportStats(ctx)

	fmt.Fprintf(e.out, "🛑 Shutdown signal received after %d block(s); exiting\n", len(e.blocks))

	logging.Info(ctx, logging.ComponentAlloc, logging.ActionShutdown, "Shutdown signal processed", map[string]interface{}{
		"blocks_allocated": len(e.blocks),
		"total_allocated":  e.allocatedBytes,
	})
}
