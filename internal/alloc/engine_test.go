package alloc

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestTargetBlocks(t *testing.T) {
	cases := []struct {
		maxCommitMB int
		blockSizeMB int
		expected    int
	}{
		{250, 100, 3}, // ceiling may be slightly exceeded, never undershot
		{300, 100, 3},
		{5, 1, 5},
		{1, 100, 1},
		{10, 3, 4},
		{0, 1, Unbounded},
		{0, 8188, Unbounded},
	}

	for _, c := range cases {
		got := TargetBlocks(c.maxCommitMB, c.blockSizeMB)
		if got != c.expected {
			t.Errorf("TargetBlocks(%d, %d): expected %d, got %d", c.maxCommitMB, c.blockSizeMB, c.expected, got)
		}
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero block size", Config{BlockSizeMB: 0, TouchFillRatio: 1, MaxCommitMB: 5}},
		{"block size above ceiling", Config{BlockSizeMB: 8189, TouchFillRatio: 1, MaxCommitMB: 5}},
		{"ratio above 1", Config{BlockSizeMB: 1, TouchFillRatio: 1.5, MaxCommitMB: 5}},
		{"negative ratio", Config{BlockSizeMB: 1, TouchFillRatio: -0.1, MaxCommitMB: 5}},
		{"negative delay", Config{BlockSizeMB: 1, TouchFillRatio: 1, DelayMs: -10, MaxCommitMB: 5}},
		{"negative max commit", Config{BlockSizeMB: 1, TouchFillRatio: 1, MaxCommitMB: -1}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			engine, err := New(c.cfg)
			if err == nil {
				t.Fatalf("Expected configuration error for %+v", c.cfg)
			}
			if engine != nil {
				t.Error("Expected no engine to be created on configuration error")
			}
		})
	}
}

func TestTouch_PageSampling(t *testing.T) {
	elements := 262138 // a 1 MB block's element count

	cases := []struct {
		ratio float64
	}{
		{0}, {0.25}, {0.5}, {0.99}, {1},
	}

	for _, c := range cases {
		buf := make([]int32, elements)
		touched, _ := touch(buf, c.ratio)

		limit := int(float64(elements) * c.ratio)
		expected := (limit + touchStride - 1) / touchStride
		if touched != expected {
			t.Errorf("ratio %g: expected %d touched elements, got %d", c.ratio, expected, touched)
		}

		// Writes land exactly at stride boundaries below the limit.
		for i := 0; i < elements; i++ {
			want := int32(0)
			if i%touchStride == 0 && i < limit {
				want = touchSentinel
			}
			if buf[i] != want {
				t.Fatalf("ratio %g: element %d is %d, expected %d", c.ratio, i, buf[i], want)
			}
		}
	}
}

func TestTouch_ZeroRatioTouchesNothing(t *testing.T) {
	buf := make([]int32, 4096)
	touched, _ := touch(buf, 0)
	if touched != 0 {
		t.Errorf("Expected zero touched elements, got %d", touched)
	}
}

func TestTouch_DigestVariesWithCoverage(t *testing.T) {
	buf := make([]int32, 262138)
	_, half := touch(buf, 0.5)
	_, full := touch(buf, 1)
	if half == full {
		t.Error("Expected differing digests for differing touch coverage")
	}
}

func TestEngine_BoundedScenario(t *testing.T) {
	// 1 MB blocks, 5 MB ceiling, half of each block touched.
	var out bytes.Buffer
	engine, err := New(Config{
		BlockSizeMB:    1,
		TouchFillRatio: 0.5,
		DelayMs:        0,
		MaxCommitMB:    5,
	}, WithOutput(&out))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if engine.TargetBlockCount() != 5 {
		t.Fatalf("Expected target of 5 blocks, got %d", engine.TargetBlockCount())
	}

	// A pre-cancelled context lets the bounded run finish without parking.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if engine.BlocksAllocated() != 5 {
		t.Errorf("Expected 5 retained blocks, got %d", engine.BlocksAllocated())
	}

	report := out.String()
	if got := strings.Count(report, "touched=50%"); got != 5 {
		t.Errorf("Expected 5 per-block lines reporting touched=50%%, got %d:\n%s", got, report)
	}
	if !strings.Contains(report, "total_allocated=5.0 MiB") {
		t.Errorf("Expected cumulative total of 5.0 MiB in report:\n%s", report)
	}
	if !strings.Contains(report, "Completed: 5 block(s)") {
		t.Errorf("Expected completion message in report:\n%s", report)
	}
}

func TestEngine_RegistryOnlyGrows(t *testing.T) {
	var out bytes.Buffer
	engine, err := New(Config{
		BlockSizeMB:    1,
		TouchFillRatio: 0,
		MaxCommitMB:    3,
	}, WithOutput(&out))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if engine.BlocksAllocated() != 3 {
		t.Fatalf("Expected 3 retained blocks, got %d", engine.BlocksAllocated())
	}
	for i, blk := range engine.blocks {
		if len(blk) != engine.ElementsPerBlock() {
			t.Errorf("Block %d has %d elements, expected %d", i, len(blk), engine.ElementsPerBlock())
		}
	}
}

func TestEngine_UnboundedStopsOnlyOnShutdown(t *testing.T) {
	var out bytes.Buffer
	engine, err := New(Config{
		BlockSizeMB:    1,
		TouchFillRatio: 0,
		DelayMs:        5,
		MaxCommitMB:    0,
	}, WithOutput(&out))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if engine.TargetBlockCount() != Unbounded {
		t.Fatalf("Expected unbounded target, got %d", engine.TargetBlockCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()

	// Absent a shutdown signal the loop must not terminate on its own.
	select {
	case err := <-done:
		t.Fatalf("Unbounded run terminated without shutdown signal: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Unbounded run did not stop after shutdown signal")
	}

	if engine.BlocksAllocated() == 0 {
		t.Error("Expected at least one block before shutdown")
	}
	if !strings.Contains(out.String(), "Shutdown signal received") {
		t.Errorf("Expected shutdown acknowledgment in report:\n%s", out.String())
	}
}

func TestEngine_NoDelayBeforeFirstBlock(t *testing.T) {
	var out bytes.Buffer
	engine, err := New(Config{
		BlockSizeMB:    1,
		TouchFillRatio: 0,
		DelayMs:        250,
		MaxCommitMB:    1,
	}, WithOutput(&out))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 250*time.Millisecond {
		t.Errorf("Single-block run took %v; the first allocation must not be delayed", elapsed)
	}
}
