// Package block converts requested block sizes into concrete element counts
// for the allocation loop, enforcing the platform ceiling on how large a
// single contiguous allocation may be.
package block

import "fmt"

const (
	// ElementSize is the width in bytes of one block element.
	ElementSize = 4

	// BytesPerMB is the number of bytes in one mebibyte.
	BytesPerMB = 1 << 20

	elementsPerMB = BytesPerMB / ElementSize

	// OverheadElements is the fixed per-allocation bookkeeping cost
	// expressed in element units. Subtracting it keeps the buffer's total
	// footprint (payload plus overhead) equal to the requested block size
	// instead of exceeding it.
	OverheadElements = 6

	// maxAllocElements is the hard ceiling on the number of 4-byte elements
	// a single contiguous buffer may hold.
	maxAllocElements = 2_146_435_071
)

// MaxBlockSizeMB is the largest block size whose derived element count stays
// at or below maxAllocElements. Derived from OverheadElements rather than
// hardcoded: floor((maxAllocElements + OverheadElements) * ElementSize / BytesPerMB).
const MaxBlockSizeMB = (maxAllocElements + OverheadElements) * ElementSize / BytesPerMB

// ElementsPerBlock computes how many elements one block of blockSizeMB holds.
// The result times ElementSize, plus the overhead, equals the requested size
// exactly. Sizes outside (0, MaxBlockSizeMB] are a configuration error and
// no allocation must be attempted for them.
func ElementsPerBlock(blockSizeMB int) (int, error) {
	if blockSizeMB <= 0 {
		return 0, fmt.Errorf("block size must be a positive number of MB, got %d", blockSizeMB)
	}
	if blockSizeMB > MaxBlockSizeMB {
		return 0, fmt.Errorf("block size %d MB exceeds the %d MB single-allocation ceiling", blockSizeMB, MaxBlockSizeMB)
	}
	return blockSizeMB*elementsPerMB - OverheadElements, nil
}
