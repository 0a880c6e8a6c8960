package recognizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// RunFunc runs one recognition session until ctx is canceled or the camera fails.
type RunFunc func(ctx context.Context) error

// Status describes the supervised loop.
type Status struct {
	Running     bool          `json:"running"`
	Subscribers int           `json:"subscribers"`
	Starts      int           `json:"starts"`
	LastError   string        `json:"last_error,omitempty"`
	LastErrorAt time.Time     `json:"last_error_at,omitzero"`
	Stats       StatsSnapshot `json:"stats"`
}

// Supervisor runs the loop only while someone is watching.
// The first subscriber starts it, the last one leaving stops it, and a camera
// failure ends every open stream so clients can reconnect and restart it.
type Supervisor struct {
	parent context.Context
	hub    *Hub
	run    RunFunc
	stats  *Stats
	logger *slog.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc // non-nil while a run is active and not stopping
	done        chan struct{}      // closed when the latest run returns
	starts      int
	lastErr     error
	lastErrorAt time.Time
}

// NewSupervisor creates a supervisor. Runs derive their context from parent.
func NewSupervisor(parent context.Context, hub *Hub, run RunFunc, stats *Stats, logger *slog.Logger) *Supervisor {
	if stats == nil {
		stats = &Stats{}
	}
	return &Supervisor{parent: parent, hub: hub, run: run, stats: stats, logger: logger}
}

// Subscribe adds a stream consumer, starting the loop if needed.
func (s *Supervisor) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.hub.Subscribe()
	if s.cancel == nil && s.parent.Err() == nil {
		s.startLocked()
	}
	return sub
}

// Unsubscribe removes a consumer and stops the loop after the last one.
func (s *Supervisor) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hub.Unsubscribe(sub.ID)
	if s.hub.Count() == 0 && s.cancel != nil {
		s.logger.Info("last stream consumer left, stopping recognition")
		s.cancel()
		s.cancel = nil
	}
}

func (s *Supervisor) startLocked() {
	ctx, cancel := context.WithCancel(s.parent)
	prev := s.done
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.starts++

	s.logger.Info("starting recognition", "start", s.starts)
	go s.supervise(ctx, cancel, prev, done)
}

func (s *Supervisor) supervise(ctx context.Context, cancel context.CancelFunc, prev <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer cancel()

	// A stopping run may still hold the camera.
	if prev != nil {
		<-prev
	}

	err := s.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.done == done
	if current && s.cancel != nil {
		s.cancel = nil
	}

	if err == nil {
		s.logger.Info("recognition stopped")
		return
	}

	s.lastErr = err
	s.lastErrorAt = time.Now()
	var camErr *CameraError
	if errors.As(err, &camErr) {
		s.logger.Error("camera failed, closing streams", "error", err)
	} else {
		s.logger.Error("recognition failed, closing streams", "error", err)
	}
	if current {
		s.hub.CloseAll()
	}
}

// Status reports the loop state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:     s.cancel != nil,
		Subscribers: s.hub.Count(),
		Starts:      s.starts,
		LastErrorAt: s.lastErrorAt,
		Stats:       s.stats.Snapshot(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Shutdown stops the loop and waits for it to return or ctx to expire.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.hub.CloseAll()
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
