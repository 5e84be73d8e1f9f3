package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Allocation progress metrics
var (
	BlocksAllocated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocmem_blocks_allocated_total",
			Help: "Total number of blocks allocated and retained",
		},
	)

	AllocatedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocmem_allocated_bytes_total",
			Help: "Cumulative nominal size of all allocated blocks in bytes",
		},
	)

	TouchedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocmem_touched_bytes_total",
			Help: "Cumulative size of pages forced to be backed by the touch pass",
		},
	)
)

// Process memory snapshot metrics, updated from the stats provider
var (
	ResidentBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocmem_resident_bytes",
			Help: "OS-reported resident set size of the process",
		},
	)

	VirtualBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocmem_virtual_bytes",
			Help: "Virtual address space size of the process",
		},
	)

	HeapAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocmem_heap_alloc_bytes",
			Help: "Bytes of live heap objects reported by the Go runtime",
		},
	)

	GCCycles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "allocmem_gc_cycles",
			Help: "Completed garbage collector cycles",
		},
	)
)
