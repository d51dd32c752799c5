package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimitStore is a thread-safe RateLimitStore backed by a map of
// per-key timestamp lists. Memory stays bounded: the store holds at most
// MaxKeys keys, evicting the least recently used when a new key would
// exceed that, and Cleanup drops timestamps that have aged out of every
// window.
type InMemoryRateLimitStore struct {
	mu       sync.RWMutex
	requests map[string]*timestampList
	maxKeys  int
	clock    Clock

	lruList *lruList
}

// timestampList holds one key's request timestamps.
type timestampList struct {
	timestamps []time.Time
	lastAccess time.Time
}

// InMemoryStoreConfig configures InMemoryRateLimitStore.
type InMemoryStoreConfig struct {
	// MaxKeys caps the number of distinct keys held; least recently used
	// keys are evicted past it. Default 10000.
	MaxKeys int

	// Clock defaults to SystemClock; tests inject a controlled one.
	Clock Clock
}

func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{
		MaxKeys: 10000,
		Clock:   &SystemClock{},
	}
}

func NewInMemoryRateLimitStore(config InMemoryStoreConfig) *InMemoryRateLimitStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	return &InMemoryRateLimitStore{
		requests: make(map[string]*timestampList),
		maxKeys:  config.MaxKeys,
		clock:    config.Clock,
		lruList:  newLRUList(),
	}
}

// AddRequest records a request timestamp for key, evicting the least
// recently used keys first if the store is at capacity and key is new.
func (s *InMemoryRateLimitStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(key, timestamp)
	return nil
}

// addLocked appends a timestamp for key. Callers hold the write lock.
func (s *InMemoryRateLimitStore) addLocked(key string, timestamp time.Time) {
	tsList, exists := s.requests[key]
	if !exists && len(s.requests) >= s.maxKeys {
		s.evictLRU()
	}
	if !exists {
		tsList = &timestampList{
			timestamps: make([]time.Time, 0, 100),
			lastAccess: timestamp,
		}
		s.requests[key] = tsList
	} else {
		tsList.lastAccess = timestamp
	}
	tsList.timestamps = append(tsList.timestamps, timestamp)
	s.lruList.touch(key)
}

// GetRequests returns key's timestamps after cutoff.
func (s *InMemoryRateLimitStore) GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tsList, exists := s.requests[key]
	if !exists {
		return []time.Time{}, nil
	}
	result := make([]time.Time, 0, len(tsList.timestamps))
	for _, ts := range tsList.timestamps {
		if ts.After(cutoff) {
			result = append(result, ts)
		}
	}
	return result, nil
}

// GetRequestCount counts key's timestamps after cutoff without copying them.
func (s *InMemoryRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(key, cutoff), nil
}

// countLocked counts key's timestamps after cutoff. Callers hold a lock.
func (s *InMemoryRateLimitStore) countLocked(key string, cutoff time.Time) int {
	tsList, exists := s.requests[key]
	if !exists {
		return 0
	}
	count := 0
	for _, ts := range tsList.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// CheckAndAddRequest atomically counts key's requests after cutoff and
// records timestamp if the count is below limit — the check and the add
// share one lock acquisition, so concurrent callers can't both slip in
// under the limit.
func (s *InMemoryRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, cutoff time.Time, limit int) (allowed bool, count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.countLocked(key, cutoff)
	if current >= limit {
		return false, current, nil
	}
	s.addLocked(key, timestamp)
	return true, current + 1, nil
}

// Cleanup drops timestamps at or before cutoff; keys left with none are
// removed entirely.
func (s *InMemoryRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, tsList := range s.requests {
		valid := tsList.timestamps[:0]
		for _, ts := range tsList.timestamps {
			if ts.After(cutoff) {
				valid = append(valid, ts)
			}
		}
		if len(valid) == 0 {
			delete(s.requests, key)
			s.lruList.remove(key)
		} else {
			tsList.timestamps = valid
		}
	}
	return nil
}

// KeyCount returns the number of keys currently held.
func (s *InMemoryRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests), nil
}

// MemoryUsage estimates the store's footprint in bytes from struct and map
// overheads, for capacity monitoring; it is an estimate, not an accounting.
func (s *InMemoryRateLimitStore) MemoryUsage(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const (
		mapEntryOverhead      = 48
		timestampSize         = 24
		timestampListOverhead = 32
		lruNodeSize           = 48
	)

	var totalBytes int64
	for _, tsList := range s.requests {
		totalBytes += mapEntryOverhead + timestampListOverhead
		totalBytes += int64(len(tsList.timestamps) * timestampSize)
	}
	totalBytes += int64(len(s.lruList.keys) * lruNodeSize)
	return totalBytes, nil
}

// evictLRU removes the least recently used tenth of the key budget (at
// least one key), so eviction isn't re-triggered on every insert at
// capacity. Callers hold the write lock.
func (s *InMemoryRateLimitStore) evictLRU() {
	evictCount := s.maxKeys / 10
	if evictCount < 1 {
		evictCount = 1
	}
	for evicted := 0; evicted < evictCount && s.lruList.tail != nil; evicted++ {
		key := s.lruList.tail.key
		delete(s.requests, key)
		s.lruList.remove(key)
	}
}

// lruList is a doubly-linked list of keys ordered newest-first by access,
// with a map for O(1) lookup. Only used under the store's write lock.
type lruList struct {
	head *lruNode
	tail *lruNode
	keys map[string]*lruNode
}

type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

func newLRUList() *lruList {
	return &lruList{keys: make(map[string]*lruNode)}
}

// touch moves key to the front, inserting it if absent.
func (l *lruList) touch(key string) {
	if _, exists := l.keys[key]; exists {
		l.remove(key)
	}
	node := &lruNode{key: key, next: l.head}
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.keys[key] = node
}

func (l *lruList) remove(key string) {
	node, exists := l.keys[key]
	if !exists {
		return
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	delete(l.keys, key)
}
