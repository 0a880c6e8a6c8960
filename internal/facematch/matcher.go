package facematch

import "math"

// EuclideanDistance returns the L2 distance between two equal-length vectors.
// Returns +Inf when the lengths differ.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match returns the entry nearest to probe if its distance is at most threshold.
// Ties keep the earliest entry. Entries whose dimension differs from the probe are skipped.
func Match(probe []float32, entries []Entry, threshold float64) (Result, bool) {
	if len(entries) == 0 || len(probe) == 0 {
		return Result{}, false
	}

	best := -1
	bestDist := math.Inf(1)
	for i := range entries {
		if len(entries[i].Embedding) != len(probe) {
			continue
		}
		if d := EuclideanDistance(probe, entries[i].Embedding); d < bestDist {
			best, bestDist = i, d
		}
	}
	return accept(entries, best, bestDist, threshold)
}

// MatchCandidates applies the Match rule to a subset of entries given by index,
// as produced by an approximate index. Ties resolve to the lowest index so the
// result agrees with Match over the same subset.
func MatchCandidates(probe []float32, entries []Entry, candidates []int, threshold float64) (Result, bool) {
	if len(candidates) == 0 || len(probe) == 0 {
		return Result{}, false
	}

	best := -1
	bestDist := math.Inf(1)
	for _, i := range candidates {
		if i < 0 || i >= len(entries) || len(entries[i].Embedding) != len(probe) {
			continue
		}
		d := EuclideanDistance(probe, entries[i].Embedding)
		if d < bestDist || (d == bestDist && i < best) {
			best, bestDist = i, d
		}
	}
	return accept(entries, best, bestDist, threshold)
}

func accept(entries []Entry, best int, dist, threshold float64) (Result, bool) {
	if best < 0 || dist > threshold {
		return Result{}, false
	}
	return Result{Student: entries[best].Student, Distance: dist, Index: best}, true
}
