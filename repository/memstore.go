package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/internal/errs"
)

// InMemoryRepository is the canonical reference Repository: a hash map
// of ResultKey buckets guarded by a single RWMutex. Reads (Get, Query)
// take the read lock; writes (Put, Delete) take the write lock. Put's
// collision probe takes the read lock, drops it, then re-acquires the
// write lock and re-checks before inserting; a concurrent Put may
// briefly observe a state between the probe and the insert, but a
// tag-exact collision is still caught at insert time.
type InMemoryRepository struct {
	mu      sync.RWMutex
	buckets map[uint64][]Entry
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{buckets: map[uint64][]Entry{}}
}

func (r *InMemoryRepository) findLocked(h uint64, key ResultKey) (int, bool) {
	for i, e := range r.buckets[h] {
		if e.Key.normalized() == key.normalized() {
			return i, true
		}
	}
	return -1, false
}

func (r *InMemoryRepository) Put(ctx context.Context, key ResultKey, report core.ValidationReport) error {
	h, err := key.collisionHash()
	if err != nil {
		return err
	}

	r.mu.RLock()
	_, collides := r.findLocked(h, key)
	r.mu.RUnlock()
	if collides {
		return errs.ErrKeyCollision.New(key.TimestampMS)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, collides := r.findLocked(h, key); collides {
		return errs.ErrKeyCollision.New(key.TimestampMS)
	}
	r.buckets[h] = append(r.buckets[h], Entry{Key: key, Report: report})
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, key ResultKey) (Entry, bool, error) {
	h, err := key.collisionHash()
	if err != nil {
		return Entry{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.findLocked(h, key)
	if !ok {
		return Entry{}, false, nil
	}
	return r.buckets[h][i], true, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, key ResultKey) error {
	h, err := key.collisionHash()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.findLocked(h, key)
	if !ok {
		return nil
	}
	bucket := r.buckets[h]
	r.buckets[h] = append(bucket[:i], bucket[i+1:]...)
	return nil
}

func (r *InMemoryRepository) Query(ctx context.Context, q Query) ([]Entry, error) {
	r.mu.RLock()
	var matched []Entry
	for _, bucket := range r.buckets {
		for _, e := range bucket {
			if q.matches(e.Key, e.Report) {
				matched = append(matched, e)
			}
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if q.sort == SortDescending {
			return matched[i].Key.TimestampMS > matched[j].Key.TimestampMS
		}
		return matched[i].Key.TimestampMS < matched[j].Key.TimestampMS
	})
	return paginate(matched, q.offset, q.limit), nil
}

var _ Repository = (*InMemoryRepository)(nil)
