// Package upload is the Upload Session Manager: the resumable blob upload
// state machine (create/append/status/finalize/cancel/expire) sitting over
// the Metadata Index (session bookkeeping) and Content Store (scratch
// bytes).
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockSet is a process-local map of per-upload-ID mutexes, the "hash map
// guarded by a mutex returning a keyed lock" the Design Note asks for.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*sync.Mutex)}
}

func (l *lockSet) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// leaseDuration is the Redis SETNX TTL backing the cross-replica lease.
const leaseDuration = 30 * time.Second

// acquireLease takes a short-TTL Redis lease for uploadID so a second
// process serving the same session can't interleave append/finalize/cancel
// calls. Pairs with the in-process mutex for single-process correctness.
func acquireLease(ctx context.Context, rdb *redis.Client, uploadID string) (func(), error) {
	if rdb == nil {
		// No Redis configured: single-process deployment, the in-process
		// mutex alone is sufficient.
		return func() {}, nil
	}

	key := fmt.Sprintf("upload:lock:%s", uploadID)
	ok, err := rdb.SetNX(ctx, key, 1, leaseDuration).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("upload %s: lease held by another process", uploadID)
	}
	release := func() {
		_ = rdb.Del(context.Background(), key).Err()
	}
	return release, nil
}
