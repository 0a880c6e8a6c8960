package gallery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

func addStudent(repo *mock.Repository, id string, emb ...float32) {
	repo.AddEnrolled(database.EnrolledStudent{
		Student:   database.Student{ID: id, Name: "Student " + id, Course: "CS"},
		Embedding: emb,
	})
}

func TestStore_EmptyBeforeReload(t *testing.T) {
	store := NewStore(mock.NewRepository(), Options{Dim: 2}, logging.Discard())

	snap := store.Snapshot()
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty snapshot, got %d entries", snap.Len())
	}
	if _, ok := snap.Match([]float32{0, 0}, 0.6); ok {
		t.Error("expected no match on empty gallery")
	}
}

func TestStore_ReloadSkipsCorruptRecord(t *testing.T) {
	repo := mock.NewRepository()
	addStudent(repo, "S1", 0, 0)
	repo.AddEnrolled(database.EnrolledStudent{
		Student:   database.Student{ID: "S2"},
		DecodeErr: database.ErrCorruptEmbedding,
	})
	addStudent(repo, "S3", 1, 1)
	addStudent(repo, "S4", 1, 1, 1) // wrong dimension

	store := NewStore(repo, Options{Dim: 2}, logging.Discard())
	n, err := store.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}

	snap := store.Snapshot()
	for i, want := range []string{"S1", "S3"} {
		if got := snap.Entries()[i].Student.ID; got != want {
			t.Errorf("entry %d = %s, want %s", i, got, want)
		}
	}
	if snap.LoadedAt().IsZero() {
		t.Error("expected LoadedAt to be set")
	}
}

func TestStore_ReloadErrorKeepsPreviousSnapshot(t *testing.T) {
	repo := mock.NewRepository()
	addStudent(repo, "S1", 0, 0)

	store := NewStore(repo, Options{Dim: 2}, logging.Discard())
	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	before := store.Snapshot()

	repo.ListEnrolledError = errors.New("disk on fire")
	if _, err := store.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}

	if store.Snapshot() != before {
		t.Error("expected previous snapshot to remain published")
	}
}

func TestStore_SnapshotIsolatedFromReload(t *testing.T) {
	repo := mock.NewRepository()
	addStudent(repo, "S1", 0, 0)

	store := NewStore(repo, Options{Dim: 2}, logging.Discard())
	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	held := store.Snapshot()

	addStudent(repo, "S2", 5, 5)
	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if held.Len() != 1 {
		t.Errorf("held snapshot changed: %d entries", held.Len())
	}
	if store.Snapshot().Len() != 2 {
		t.Errorf("expected new snapshot with 2 entries, got %d", store.Snapshot().Len())
	}
	if _, ok := store.Snapshot().Match([]float32{5, 5}, 0.6); !ok {
		t.Error("expected newly enrolled student to match")
	}
}

func TestLoadError(t *testing.T) {
	err := &LoadError{StudentID: "S9", Err: database.ErrCorruptEmbedding}
	if !errors.Is(err, database.ErrCorruptEmbedding) {
		t.Error("expected LoadError to unwrap to ErrCorruptEmbedding")
	}
	if err.Error() != "load embedding for student S9: corrupt embedding" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStore_ConcurrentReadsDuringReload(t *testing.T) {
	repo := mock.NewRepository()
	addStudent(repo, "S1", 0, 0)
	store := NewStore(repo, Options{Dim: 2}, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := store.Snapshot()
				snap.Match([]float32{0, 0}, 0.6)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		if _, err := store.Reload(context.Background()); err != nil {
			t.Errorf("Reload failed: %v", err)
		}
	}
	wg.Wait()
}

func TestSnapshot_HNSWAgreesWithExact(t *testing.T) {
	const (
		dim   = 16
		count = 300
	)
	rng := rand.New(rand.NewSource(42))

	repo := mock.NewRepository()
	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32() * 10
		}
		vectors[i] = v
		addStudent(repo, fmt.Sprintf("S%03d", i), v...)
	}

	store := NewStore(repo, Options{Dim: dim, Index: IndexHNSW, HNSWMinEntries: 100}, logging.Discard())
	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	snap := store.Snapshot()
	if !snap.Indexed() {
		t.Fatal("expected HNSW index to be built")
	}

	// Probes close to stored vectors must resolve to the same student as exact search.
	for i := 0; i < count; i += 37 {
		probe := make([]float32, dim)
		for j := range probe {
			probe[j] = vectors[i][j] + 0.01
		}
		got, ok := snap.Match(probe, 0.6)
		if !ok {
			t.Errorf("probe %d: expected a match", i)
			continue
		}
		if want := fmt.Sprintf("S%03d", i); got.Student.ID != want {
			t.Errorf("probe %d: matched %s, want %s", i, got.Student.ID, want)
		}
	}

	if _, ok := snap.Match(make([]float32, dim-1), 0.6); ok {
		t.Error("expected no match for wrong probe dimension")
	}
}

func TestSnapshot_HNSWEveryEnrolledFaceMatchesItself(t *testing.T) {
	const (
		dim   = 128
		count = 400
	)
	rng := rand.New(rand.NewSource(7))

	repo := mock.NewRepository()
	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		vectors[i] = v
		addStudent(repo, fmt.Sprintf("S%03d", i), v...)
	}

	store := NewStore(repo, Options{Dim: dim, Index: IndexHNSW}, logging.Discard())
	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	snap := store.Snapshot()
	if !snap.Indexed() {
		t.Fatal("expected HNSW index to be built")
	}

	missed := 0
	for i, v := range vectors {
		got, ok := snap.Match(v, 0.6)
		if !ok || got.Student.ID != fmt.Sprintf("S%03d", i) {
			missed++
			continue
		}
		if got.Distance != 0 {
			t.Errorf("S%03d: expected distance 0, got %f", i, got.Distance)
		}
	}
	if missed > 0 {
		t.Errorf("%d/%d enrolled faces did not match themselves", missed, count)
	}

	exact := &Snapshot{entries: snap.Entries(), dim: dim}
	for i := 0; i < count; i += 50 {
		probe := make([]float32, dim)
		for j := range probe {
			probe[j] = rng.Float32()
		}
		want, wantOK := exact.Match(probe, 0.6)
		got, ok := snap.Match(probe, 0.6)
		if ok != wantOK || (ok && got.Student.ID != want.Student.ID) {
			t.Errorf("random probe %d: indexed=(%v,%v) exact=(%v,%v)", i, got.Student.ID, ok, want.Student.ID, wantOK)
		}
	}
}

func TestSnapshot_HNSWBelowMinimumUsesExactSearch(t *testing.T) {
	repo := mock.NewRepository()
	addStudent(repo, "S1", 0, 0)

	store := NewStore(repo, Options{Dim: 2, Index: IndexHNSW}, logging.Discard())
	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if store.Snapshot().Indexed() {
		t.Error("expected no index below the minimum entry count")
	}
}
