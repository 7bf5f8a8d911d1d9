package usage

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultShards = 32

type counterKey struct {
	tenantID    uuid.UUID
	metric      string
	periodStart int64
	periodEnd   int64
}

type shard struct {
	mu       sync.Mutex
	counters map[counterKey]int64
}

// MemoryStore keeps counters in process memory behind a sharded lock table.
// A counter key always hashes to the same shard, so increments on one key
// serialize while unrelated tenants proceed in parallel.
type MemoryStore struct {
	shards []*shard
}

// NewMemoryStore builds a store with the given shard count (default 32).
func NewMemoryStore(shards int) *MemoryStore {
	if shards <= 0 {
		shards = defaultShards
	}
	store := &MemoryStore{shards: make([]*shard, shards)}
	for i := range store.shards {
		store.shards[i] = &shard{counters: make(map[counterKey]int64)}
	}
	return store
}

// WithTx returns the store itself; memory counters live outside any database transaction.
func (s *MemoryStore) WithTx(*gorm.DB) Store {
	return s
}

func newCounterKey(tenantID uuid.UUID, metric string, periodStart, periodEnd time.Time) counterKey {
	return counterKey{
		tenantID:    tenantID,
		metric:      metric,
		periodStart: periodStart.UTC().UnixNano(),
		periodEnd:   periodEnd.UTC().UnixNano(),
	}
}

func (s *MemoryStore) shardFor(key counterKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write(key.tenantID[:])
	_, _ = h.Write([]byte(key.metric))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *MemoryStore) Increment(ctx context.Context, tenantID uuid.UUID, key string, periodStart, periodEnd time.Time, amount int64) (int64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	if err := validatePeriod(periodStart, periodEnd); err != nil {
		return 0, err
	}
	ck := newCounterKey(tenantID, key, periodStart, periodEnd)
	sh := s.shardFor(ck)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.counters[ck] += amount
	return sh.counters[ck], nil
}

func (s *MemoryStore) Read(ctx context.Context, tenantID uuid.UUID, key string, periodStart, periodEnd time.Time) (int64, error) {
	ck := newCounterKey(tenantID, key, periodStart, periodEnd)
	sh := s.shardFor(ck)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.counters[ck], nil
}

// DeleteRange walks every shard since a tenant's metrics hash independently.
func (s *MemoryStore) DeleteRange(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (int64, error) {
	start := periodStart.UTC().UnixNano()
	end := periodEnd.UTC().UnixNano()
	return s.deleteWhere(func(k counterKey) bool {
		return k.tenantID == tenantID && k.periodStart == start && k.periodEnd == end
	}), nil
}

func (s *MemoryStore) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := cutoff.UTC().UnixNano()
	return s.deleteWhere(func(k counterKey) bool {
		return k.periodEnd < limit
	}), nil
}

func (s *MemoryStore) deleteWhere(match func(counterKey) bool) int64 {
	var deleted int64
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.counters {
			if match(k) {
				delete(sh.counters, k)
				deleted++
			}
		}
		sh.mu.Unlock()
	}
	return deleted
}
