package cache

import (
	"log/slog"
	"sync"
	"time"

	"datapulse/internal/dataset"
)

// DefaultTTL is the freshness window after which a cached dataset must be
// reloaded from persisted storage.
const DefaultTTL = 5 * time.Minute

// Loader supplies persisted project state to the cache. The project store
// implements it; the indirection keeps the cache free of storage concerns.
type Loader interface {
	// LoadDataset returns a project's canonical table, a NotFound error
	// when no dataset has been consolidated yet, or a Storage error when
	// the backing file cannot be read.
	LoadDataset(projectID string) (*dataset.Table, error)
	// DateColumn returns the project's designated date column name, or ""
	// when none is configured.
	DateColumn(projectID string) (string, error)
}

type entry struct {
	table    *dataset.Table
	loadedAt time.Time
}

// Service is the process-wide dataset cache, keyed by project id. At most
// one entry exists per project; entries older than the TTL are treated as
// absent. Entries are only ever replaced wholesale, never mutated in place,
// so a reader observes either the complete prior table or the complete new
// one. The tables it returns are shared snapshots: callers that need to
// transform a column must work on their own copy.
type Service struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	loader  Loader
	logger  *slog.Logger

	now func() time.Time // test seam
}

// New constructs the cache service. One instance is created at startup and
// injected everywhere a read path needs the canonical table.
func New(loader Loader, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		entries: make(map[string]entry),
		ttl:     ttl,
		loader:  loader,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the project's canonical table, serving an unexpired cached
// entry without touching disk unless forceReload is set. On a miss the
// table is loaded from persisted storage, the designated date column is
// normalized to the Date type (a no-op when it already is one), and the
// entry is stored with a fresh timestamp.
func (s *Service) Get(projectID string, forceReload bool) (*dataset.Table, error) {
	if !forceReload {
		s.mu.RLock()
		e, ok := s.entries[projectID]
		s.mu.RUnlock()
		if ok && s.now().Sub(e.loadedAt) < s.ttl {
			return e.table, nil
		}
	}

	table, err := s.load(projectID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries[projectID] = entry{table: table, loadedAt: s.now()}
	s.mu.Unlock()

	s.logger.Debug("dataset loaded into cache",
		slog.String("project", projectID),
		slog.Int("rows", table.NumRows()),
		slog.Int64("bytes", table.MemorySize()))
	return table, nil
}

// load reads the persisted dataset and runs the one-time date normalization
// pass outside the cache lock.
func (s *Service) load(projectID string) (*dataset.Table, error) {
	table, err := s.loader.LoadDataset(projectID)
	if err != nil {
		return nil, err
	}
	dateCol, err := s.loader.DateColumn(projectID)
	if err != nil {
		return nil, err
	}
	if dateCol != "" {
		table, err = dataset.NormalizeDateColumn(table, dateCol)
		if err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Invalidate removes the project's entry unconditionally. Safe to call when
// no entry exists.
func (s *Service) Invalidate(projectID string) {
	s.mu.Lock()
	delete(s.entries, projectID)
	s.mu.Unlock()
}

// Stats reports the actual in-memory byte size of each cached table.
func (s *Service) Stats() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64, len(s.entries))
	for id, e := range s.entries {
		stats[id] = e.table.MemorySize()
	}
	return stats
}
