package server

import (
	cryptorand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MonotonicEntropy isn't safe for concurrent use, so each goroutine
// borrows one from the pool.
var monotonicPool = sync.Pool{
	New: func() any {
		return ulid.Monotonic(cryptorand.Reader, 0)
	},
}

func makeULID(t time.Time) (ulid.ULID, error) {
	mono := monotonicPool.Get().(*ulid.MonotonicEntropy)
	defer monotonicPool.Put(mono)

	return ulid.New(ulid.Timestamp(t), mono)
}
