package mempool

import (
	"sync"
)

// A sized pool for []byte pixel buffers. Image copies and blur destinations
// are the same size for every image of a corpus, so reusing them across
// windows removes most of the allocation churn.

var bytePools sync.Map // key: size class (int), value: *sync.Pool

const byteStep = 4096

// byteSizeClass rounds n up to the next multiple of 4 KiB.
func byteSizeClass(n int) int {
	if n <= byteStep {
		return byteStep
	}
	r := (n + byteStep - 1) / byteStep
	return r * byteStep
}

func bytePool(cls int) *sync.Pool {
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]byte, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return nil
	}
	return p
}

// GetBytes retrieves a []byte buffer of length n from the pool.
// The contents are not zeroed; callers overwrite every byte they read.
// The caller should return it via PutBytes when done.
func GetBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	cls := byteSizeClass(n)
	p := bytePool(cls)
	if p == nil {
		return make([]byte, n, cls)
	}
	buf, ok := p.Get().([]byte)
	if !ok || cap(buf) < cls {
		buf = make([]byte, cls)
	}
	return buf[:n]
}

// GetZeroedBytes is GetBytes with the returned region cleared.
func GetZeroedBytes(n int) []byte {
	buf := GetBytes(n)
	clear(buf)
	return buf
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
// Buffers whose capacity is not an exact size class (for example slices
// allocated by a decoder) are filed under the largest class they can serve.
func PutBytes(buf []byte) {
	if cap(buf) < byteStep {
		return
	}
	cls := (cap(buf) / byteStep) * byteStep
	p := bytePool(cls)
	if p == nil {
		return
	}
	p.Put(buf[:cls]) //nolint:staticcheck
}
