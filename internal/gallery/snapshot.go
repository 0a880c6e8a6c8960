package gallery

import (
	"time"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// HNSW parameters
const (
	DefaultHNSWMinEntries = 256 // exact search is fast enough below this
	HNSWMaxNeighbors      = 16  // M parameter
	HNSWEfSearch          = 200 // search-time candidate list size
	HNSWCandidates        = 32  // neighbours re-ranked exactly per probe
)

// Snapshot is an immutable view of the enrolled embeddings.
type Snapshot struct {
	entries  []facematch.Entry
	graph    *hnsw.Graph[int] // keys are indexes into entries; nil for exact search
	dim      int
	loadedAt time.Time
}

func emptySnapshot() *Snapshot {
	return &Snapshot{}
}

func newSnapshot(entries []facematch.Entry, opts Options) *Snapshot {
	snap := &Snapshot{entries: entries, loadedAt: time.Now()}
	if len(entries) > 0 {
		snap.dim = len(entries[0].Embedding)
	}
	if opts.Index == IndexHNSW && len(entries) >= opts.HNSWMinEntries && snap.uniformDim() {
		snap.graph = buildGraph(entries)
	}
	return snap
}

func (s *Snapshot) uniformDim() bool {
	for _, e := range s.entries {
		if len(e.Embedding) != s.dim {
			return false
		}
	}
	return true
}

func buildGraph(entries []facematch.Entry) *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, e := range entries {
		g.Add(hnsw.MakeNode(i, e.Embedding))
	}
	return g
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Entries returns the entries. Callers must not modify them.
func (s *Snapshot) Entries() []facematch.Entry { return s.entries }

// Indexed reports whether an HNSW graph backs this snapshot.
func (s *Snapshot) Indexed() bool { return s.graph != nil }

// LoadedAt returns when the snapshot was built; zero for the initial empty one.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Match finds the nearest entry within threshold.
// With an index, the nearest HNSW neighbours are re-ranked exactly. The graph
// can miss the true neighbour, so a rejected candidate set falls back to an
// exact scan. An accepted match from the graph is approximate: it is within
// threshold but not guaranteed to be the global minimum.
func (s *Snapshot) Match(probe []float32, threshold float64) (facematch.Result, bool) {
	if s.graph == nil {
		return facematch.Match(probe, s.entries, threshold)
	}
	if len(probe) != s.dim {
		return facematch.Result{}, false
	}

	neighbors := s.graph.Search(probe, HNSWCandidates)
	candidates := make([]int, len(neighbors))
	for i, n := range neighbors {
		candidates[i] = n.Key
	}
	if res, ok := facematch.MatchCandidates(probe, s.entries, candidates, threshold); ok {
		return res, true
	}
	return facematch.Match(probe, s.entries, threshold)
}
