package pricecache

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/karatlabs/karat/internal/entity"
)

const (
	defaultCacheDir   = "./wal/pricecache"
	cacheSegmentLimit = 1000
	cacheMaxSegments  = 100
	cacheKeyPrefix    = "priceset_"
)

// WALStore is the durable price cache: the most recent CachedPriceSet per
// currency, backed by a write-ahead log so the live price survives restarts.
// Each Put writes the whole set as one record, which is what makes the
// dual-metal commit atomic. Stale sets are still returned by Get; staleness
// is the caller's policy (IsValid), never an internal eviction.
type WALStore struct {
	wal  *gowal.Wal
	mu   sync.RWMutex
	sets map[string]entity.CachedPriceSet
}

// NewWALStore opens the cache under dir and replays the log to recover the
// latest set per currency.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultCacheDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "cache_",
		SegmentThreshold: cacheSegmentLimit,
		MaxSegments:      cacheMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init price cache WAL")
	}

	sets := make(map[string]entity.CachedPriceSet)
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, cacheKeyPrefix) {
			continue
		}
		var set entity.CachedPriceSet
		if err := json.Unmarshal(msg.Value, &set); err != nil {
			// unlike the run log, committed prices are never skipped on
			// decode failure: refuse to start on a corrupt record
			return nil, errors.Wrapf(err, "decode cached price set %s", msg.Key)
		}
		// later records supersede earlier ones for the same currency
		sets[set.Currency] = set
	}

	return &WALStore{wal: wal, sets: sets}, nil
}

// Get returns the cached set for a currency, stale or not.
func (s *WALStore) Get(currency string) (entity.CachedPriceSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[currency]
	return set, ok
}

// Put replaces the cached set for a currency. Both metals commit together or
// the write is rejected. A set older than the stored one is rejected too:
// fetch times never move backwards.
func (s *WALStore) Put(currency string, set entity.CachedPriceSet) error {
	if set.Currency != currency {
		return fmt.Errorf("price set currency %q does not match key %q", set.Currency, currency)
	}
	if err := set.Gold.Validate(); err != nil {
		return errors.Wrap(err, "gold snapshot")
	}
	if err := set.Platinum.Validate(); err != nil {
		return errors.Wrap(err, "platinum snapshot")
	}

	payload, err := json.Marshal(set)
	if err != nil {
		return errors.Wrap(err, "marshal cached price set")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sets[currency]; ok && set.LastUpdated.Before(prev.LastUpdated) {
		return fmt.Errorf("rejecting back-dated price set for %s: %s precedes cached %s",
			currency, set.LastUpdated.Format(time.RFC3339), prev.LastUpdated.Format(time.RFC3339))
	}

	key := cacheKeyPrefix + currency
	if err := s.wal.Write(s.wal.CurrentIndex()+1, key, payload); err != nil {
		return errors.Wrap(err, "write cached price set")
	}

	s.sets[currency] = set
	return nil
}

// IsValid reports whether a cached set exists for the currency and is no
// older than maxAge.
func (s *WALStore) IsValid(currency string, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[currency]
	if !ok {
		return false
	}
	return set.Age(time.Now()) <= maxAge
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
