package alloc

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/luckerby/allocmem/internal/block"
)

// touchStride is the element distance between writes. 1024 elements is 4096
// bytes, one write per memory page: a single write is enough to force the
// page to be backed, so touching every element would only add cost.
const touchStride = 1024

// pageBytes is the footprint one touched element forces to be committed.
const pageBytes = touchStride * block.ElementSize

// touchSentinel is the value written to one element per sampled page.
const touchSentinel int32 = 3

// touch writes touchSentinel to every touchStride-th element from index 0 up
// to floor(len(buf)*ratio), and folds each touched position and its value
// into a digest. The digest makes the writes observable output, so they
// cannot be treated as dead stores. Returns the number of elements written
// and the digest.
func touch(buf []int32, ratio float64) (int, uint64) {
	limit := int(float64(len(buf)) * ratio)

	d := xxhash.New()
	var scratch [12]byte
	touched := 0
	for i := 0; i < limit; i += touchStride {
		buf[i] = touchSentinel
		binary.LittleEndian.PutUint64(scratch[0:8], uint64(i))
		binary.LittleEndian.PutUint32(scratch[8:12], uint32(buf[i]))
		d.Write(scratch[:])
		touched++
	}
	return touched, d.Sum64()
}
