package facematch

import (
	"math"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func entry(id string, emb ...float32) Entry {
	return Entry{Student: database.Student{ID: id, Name: "Student " + id}, Embedding: emb}
}

func TestEuclideanDistance(t *testing.T) {
	if d := EuclideanDistance([]float32{0, 0}, []float32{3, 4}); math.Abs(d-5) > 1e-9 {
		t.Errorf("expected 5, got %v", d)
	}
	if d := EuclideanDistance([]float32{1}, []float32{1, 2}); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for mismatched lengths, got %v", d)
	}
}

func TestMatch(t *testing.T) {
	entries := []Entry{
		entry("A", 0, 0),
		entry("B", 1, 0),
		entry("C", 0.5, 0),
	}

	tests := []struct {
		name      string
		probe     []float32
		entries   []Entry
		threshold float64
		wantID    string
		wantOK    bool
	}{
		{"exact match", []float32{1, 0}, entries, 0.6, "B", true},
		{"nearest within threshold", []float32{0.1, 0}, entries, 0.6, "A", true},
		{"nearest beyond threshold", []float32{5, 5}, entries, 0.6, "", false},
		{"boundary distance accepted", []float32{0, 0.5}, entries[:1], 0.5, "A", true},
		{"just beyond boundary", []float32{0, 0.5}, entries[:1], 0.49, "", false},
		{"empty gallery", []float32{0, 0}, nil, 0.6, "", false},
		{"empty probe", nil, entries, 0.6, "", false},
		{"dimension mismatch skipped", []float32{1, 0}, []Entry{entry("X", 1, 0, 0), entry("B", 1, 0)}, 0.6, "B", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.probe, tt.entries, tt.threshold)
			if ok != tt.wantOK {
				t.Fatalf("Match ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Student.ID != tt.wantID {
				t.Errorf("Match = %s, want %s", got.Student.ID, tt.wantID)
			}
		})
	}
}

func TestMatch_TieKeepsEarliestEntry(t *testing.T) {
	entries := []Entry{entry("A", 0, 0), entry("B", 1, 0)}

	got, ok := Match([]float32{0.5, 0}, entries, 0.6)
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Student.ID != "A" || got.Index != 0 {
		t.Errorf("expected A at index 0, got %s at %d", got.Student.ID, got.Index)
	}
	if math.Abs(got.Distance-0.5) > 1e-9 {
		t.Errorf("expected distance 0.5, got %v", got.Distance)
	}
}

func TestMatchCandidates(t *testing.T) {
	entries := []Entry{entry("A", 0, 0), entry("B", 1, 0), entry("C", 0.9, 0)}

	got, ok := MatchCandidates([]float32{1, 0}, entries, []int{2, 1}, 0.6)
	if !ok || got.Student.ID != "B" {
		t.Errorf("expected B, got %+v ok=%v", got, ok)
	}

	// Equal distances resolve to the lower index regardless of candidate order.
	got, ok = MatchCandidates([]float32{0.5, 0}, entries, []int{1, 0}, 0.6)
	if !ok || got.Student.ID != "A" {
		t.Errorf("expected A on tie, got %+v ok=%v", got, ok)
	}

	if _, ok := MatchCandidates([]float32{1, 0}, entries, []int{7, -1}, 0.6); ok {
		t.Error("expected no match for out-of-range candidates")
	}
	if _, ok := MatchCandidates([]float32{1, 0}, entries, nil, 0.6); ok {
		t.Error("expected no match without candidates")
	}
}
