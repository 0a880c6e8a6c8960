// Package gallery keeps the in-memory set of enrolled face embeddings.
//
// The durable store is the source of truth. Store.Reload reads it in full,
// builds a new immutable Snapshot and swaps it in atomically, so readers
// never observe a half-built gallery and never wait on a reload.
package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Index modes.
const (
	IndexLinear = config.IndexLinear
	IndexHNSW   = config.IndexHNSW
)

// LoadError describes one stored embedding that could not be used.
type LoadError struct {
	StudentID string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load embedding for student %s: %v", e.StudentID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Options configures how snapshots are built.
type Options struct {
	Dim            int    // expected embedding length; 0 accepts any
	Index          string // IndexLinear or IndexHNSW
	HNSWMinEntries int    // below this the HNSW index is not built
}

// Store owns the current Snapshot.
type Store struct {
	repo    database.StudentReader
	opts    Options
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
	reload  sync.Mutex // serializes Reload so the newest read is published last
}

// NewStore creates a store holding an empty snapshot.
func NewStore(repo database.StudentReader, opts Options, logger *slog.Logger) *Store {
	if opts.HNSWMinEntries <= 0 {
		opts.HNSWMinEntries = DefaultHNSWMinEntries
	}
	s := &Store{repo: repo, opts: opts, logger: logger}
	s.current.Store(emptySnapshot())
	return s
}

// Snapshot returns the current immutable view. Never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload rebuilds the snapshot from storage and publishes it.
// Corrupt records are logged and skipped. On a storage error the previous
// snapshot stays in place. Returns the number of entries published.
func (s *Store) Reload(ctx context.Context) (int, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	start := time.Now()
	rows, err := s.repo.ListEnrolled(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload gallery: %w", err)
	}

	entries := make([]facematch.Entry, 0, len(rows))
	var skipped int
	for _, row := range rows {
		if loadErr := s.validate(row); loadErr != nil {
			skipped++
			s.logger.Warn("skipping student embedding", "student_id", loadErr.StudentID, "error", loadErr.Err)
			continue
		}
		entries = append(entries, facematch.Entry{Student: row.Student, Embedding: row.Embedding})
	}

	snap := newSnapshot(entries, s.opts)
	s.current.Store(snap)

	s.logger.Info("gallery reloaded",
		"entries", snap.Len(),
		"skipped", skipped,
		"indexed", snap.Indexed(),
		"duration", time.Since(start))
	return snap.Len(), nil
}

func (s *Store) validate(row database.EnrolledStudent) *LoadError {
	if row.DecodeErr != nil {
		return &LoadError{StudentID: row.ID, Err: row.DecodeErr}
	}
	if len(row.Embedding) == 0 {
		return &LoadError{StudentID: row.ID, Err: database.ErrCorruptEmbedding}
	}
	if s.opts.Dim > 0 && len(row.Embedding) != s.opts.Dim {
		return &LoadError{
			StudentID: row.ID,
			Err:       fmt.Errorf("%w: dimension %d, expected %d", database.ErrCorruptEmbedding, len(row.Embedding), s.opts.Dim),
		}
	}
	return nil
}
