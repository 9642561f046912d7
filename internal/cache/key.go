package cache

import (
	"sync"
	"unsafe"

	"github.com/zeebo/xxh3"
)

// key is a 64-bit map key plus the full 128-bit hash to detect
// collisions: a lookup only hits when all three words match.
type key struct {
	v  uint64
	hi uint64
	lo uint64
}

func (k key) isTheSame(other key) bool {
	return k.v == other.v && k.hi == other.hi && k.lo == other.lo
}

var hasherPool = sync.Pool{New: func() any { return xxh3.New() }}

func newKey(s string) key {
	return buildKey(unsafe.Slice(unsafe.StringData(s), len(s)))
}

func buildKey(data []byte) key {
	hasher := hasherPool.Get().(*xxh3.Hasher)
	hasher.Reset()

	_, _ = hasher.Write(data)
	u128 := hasher.Sum128()

	k := key{
		v:  hasher.Sum64(),
		hi: u128.Hi,
		lo: u128.Lo,
	}

	hasherPool.Put(hasher)

	return k
}
