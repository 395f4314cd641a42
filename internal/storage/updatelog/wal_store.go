package updatelog

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"github.com/karatlabs/karat/internal/entity"
)

const (
	defaultLogDir   = "./wal/updatelog"
	logSegmentLimit = 1000
	logMaxSegments  = 10

	// Capacity bounds the retained history; the oldest entry is evicted
	// once a new append would exceed it.
	Capacity = 100

	logKeyPrefix = "update_"
)

// WALStore is the append-only history of update runs. The in-memory view is
// a ring of the most recent Capacity entries; the WAL makes it survive
// restarts. Appends are best-effort: persistence failures are swallowed here
// so a logging problem can never fail an update run.
type WALStore struct {
	wal     *gowal.Wal
	logger  *zap.Logger
	mu      sync.RWMutex
	entries []entity.UpdateLogEntry // oldest first
}

// NewWALStore opens the log under dir and replays the most recent entries.
func NewWALStore(dir string, logger *zap.Logger) (*WALStore, error) {
	if dir == "" {
		dir = defaultLogDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: logSegmentLimit,
		MaxSegments:      logMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init update log WAL")
	}

	var entries []entity.UpdateLogEntry
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, logKeyPrefix) {
			continue
		}
		var entry entity.UpdateLogEntry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			logger.Warn("skipping undecodable update log entry", zap.String("key", msg.Key), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) > Capacity {
		entries = entries[len(entries)-Capacity:]
	}

	return &WALStore{wal: wal, logger: logger, entries: entries}, nil
}

// Append records one completed run. It never fails the caller: WAL errors
// are logged and dropped, and eviction of the oldest entry never blocks.
func (s *WALStore) Append(entry entity.UpdateLogEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("failed to marshal update log entry", zap.String("id", entry.ID), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, logKeyPrefix+entry.ID, payload); err != nil {
		s.logger.Error("failed to persist update log entry", zap.String("id", entry.ID), zap.Error(err))
	}

	s.entries = append(s.entries, entry)
	if len(s.entries) > Capacity {
		s.entries = s.entries[len(s.entries)-Capacity:]
	}
}

// Recent returns up to limit entries, most recent first. A non-positive
// limit returns the full retained history.
func (s *WALStore) Recent(limit int) []entity.UpdateLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}

	out := make([]entity.UpdateLogEntry, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
