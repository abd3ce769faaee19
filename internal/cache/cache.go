// Package cache persists fetched API payloads in flat JSON files, one file
// per data category. Staleness is judged at read time; entries are never
// evicted, so an expired payload stays available as a network-failure
// fallback.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TTL is the validity window of an entry measured from FetchedAt.
const TTL = 3 * time.Hour

// Entry is a single cached payload. Payload is opaque to the store and is
// replaced wholesale on every Put; there is no partial merge.
type Entry struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Valid reports whether the entry is inside its TTL window at the given time.
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.FetchedAt) < TTL
}

// Age returns how long ago the entry was fetched.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store is a mutex-guarded JSON file holding one table of entries.
// Every access is a full load-mutate-save so concurrent writers cannot
// lose each other's updates.
type Store struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewStore creates a store backed by the JSON file at path.
// The file is created lazily on first Put.
func NewStore(path string, log *zap.Logger) *Store {
	return &Store{path: path, log: log}
}

// Get returns the entry for key, if present. It never judges staleness;
// callers apply Entry.Valid according to their own policy.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.load()
	e, ok := table[key]
	return e, ok
}

// Put replaces the entry for key with a fresh payload stamped now.
func (s *Store) Put(key string, payload json.RawMessage) error {
	return s.PutAt(key, payload, time.Now().UTC())
}

// PutAt is Put with an explicit fetch timestamp.
func (s *Store) PutAt(key string, payload json.RawMessage, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.load()
	table[key] = Entry{Key: key, Payload: payload, FetchedAt: fetchedAt.UTC()}
	return s.save(table)
}

// Keys returns all keys currently present in the table.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.load()
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	return keys
}

// load reads the whole table. A missing, empty or corrupt file degrades to
// an empty table; the store self-heals on the next successful Put.
func (s *Store) load() map[string]Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("cache read failed, treating as empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return map[string]Entry{}
	}
	if len(data) == 0 {
		return map[string]Entry{}
	}

	var table map[string]Entry
	if err := json.Unmarshal(data, &table); err != nil {
		s.log.Warn("cache file corrupt, treating as empty",
			zap.String("path", s.path), zap.Error(err))
		return map[string]Entry{}
	}
	if table == nil {
		table = map[string]Entry{}
	}
	return table
}

func (s *Store) save(table map[string]Entry) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
