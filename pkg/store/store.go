// Package store keeps a history of stylization runs.
//
// The server records every request; `stylewct runs` style listings read it
// back newest first. [MongoStore] persists records in MongoDB, and
// [MemoryStore] keeps a bounded in-process history when no database is
// configured.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/pipeline"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Record describes one finished (or failed) run.
type Record struct {
	ID         string    `bson:"_id" json:"id"`
	Pair       string    `bson:"pair" json:"pair"`
	Source     string    `bson:"source" json:"source"` // "cli" or "api"
	Key        string    `bson:"key,omitempty" json:"key,omitempty"`
	Method     string    `bson:"method" json:"method"`
	Targets    []string  `bson:"targets" json:"targets"`
	Gamma      float64   `bson:"gamma" json:"gamma"`
	Delta      float64   `bson:"delta" json:"delta"`
	Mode       string    `bson:"mode" json:"mode"`
	CacheHit   bool      `bson:"cache_hit" json:"cache_hit"`
	DurationMS int64     `bson:"duration_ms" json:"duration_ms"`
	Error      string    `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// NewRecord summarizes a pipeline run. res may be nil when err is set.
func NewRecord(source, pair string, opts pipeline.Options, res *pipeline.Result, err error) Record {
	targets := make([]string, len(opts.Targets))
	for i, l := range opts.Targets {
		targets[i] = string(l)
	}
	r := Record{
		ID:        uuid.NewString(),
		Pair:      pair,
		Source:    source,
		Method:    string(opts.Method),
		Targets:   targets,
		Gamma:     opts.Gamma,
		Delta:     opts.Delta,
		Mode:      string(opts.BlendMode()),
		CreatedAt: time.Now().UTC(),
	}
	if res != nil {
		r.Key = res.Key
		r.CacheHit = res.CacheHit
		r.DurationMS = res.Stats.Total.Milliseconds()
	}
	if err != nil {
		r.Error = errors.UserMessage(err)
	}
	return r
}

// Store persists run records. Implementations must be safe for concurrent
// use.
type Store interface {
	Insert(ctx context.Context, r Record) error
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close(ctx context.Context) error
}

// MemoryStore keeps the most recent records in memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	max     int
}

// NewMemoryStore creates a store holding at most capacity records
// (DefaultListLimit when capacity is not positive).
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultListLimit
	}
	return &MemoryStore{max: capacity}
}

// Insert adds a record, evicting the oldest when full.
func (s *MemoryStore) Insert(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	if over := len(s.records) - s.max; over > 0 {
		s.records = append(s.records[:0:0], s.records[over:]...)
	}
	return nil
}

// List returns up to limit records, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.records))
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close does nothing for the memory store.
func (s *MemoryStore) Close(context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
