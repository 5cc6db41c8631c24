package memory

import (
	"hash/fnv"
	"sync"
)

// lockShards bounds the lock table; collisions only cost unrelated
// owners a shared mutex, never correctness.
const lockShards = 128

// ownerLocks serializes mutations per owner. Cross-owner operations
// land on different shards and never block each other.
type ownerLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *ownerLocks) lock(ownerID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(ownerID))
	mu := &l.shards[h.Sum32()%lockShards]
	mu.Lock()
	return mu
}
