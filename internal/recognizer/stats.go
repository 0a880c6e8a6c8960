package recognizer

import (
	"sync/atomic"
	"time"
)

// Stats are cumulative loop counters. Safe for concurrent use.
type Stats struct {
	frames       atomic.Int64
	faces        atomic.Int64
	matches      atomic.Int64
	recorded     atomic.Int64
	readErrors   atomic.Int64
	detectErrors atomic.Int64
	ledgerErrors atomic.Int64
	dropped      atomic.Int64
	lastFrame    atomic.Int64 // unix nanos
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Frames       int64     `json:"frames"`
	Faces        int64     `json:"faces"`
	Matches      int64     `json:"matches"`
	Recorded     int64     `json:"recorded"`
	ReadErrors   int64     `json:"read_errors"`
	DetectErrors int64     `json:"detect_errors"`
	LedgerErrors int64     `json:"ledger_errors"`
	Dropped      int64     `json:"dropped"`
	LastFrameAt  time.Time `json:"last_frame_at,omitzero"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Frames:       s.frames.Load(),
		Faces:        s.faces.Load(),
		Matches:      s.matches.Load(),
		Recorded:     s.recorded.Load(),
		ReadErrors:   s.readErrors.Load(),
		DetectErrors: s.detectErrors.Load(),
		LedgerErrors: s.ledgerErrors.Load(),
		Dropped:      s.dropped.Load(),
	}
	if ns := s.lastFrame.Load(); ns != 0 {
		snap.LastFrameAt = time.Unix(0, ns)
	}
	return snap
}
