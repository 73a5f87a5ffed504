package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps windows in process. It suits single-instance deployments
// and is the fallback when no shared store is configured.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{count: 1, resetAt: now.Add(window)}
		s.windows[key] = w
		return Window{Count: 1, ResetAt: w.resetAt, Admitted: limit >= 1}, nil
	}

	if w.count >= limit {
		return Window{Count: w.count, ResetAt: w.resetAt, Admitted: false}, nil
	}

	w.count++
	return Window{Count: w.count, ResetAt: w.resetAt, Admitted: true}, nil
}

// Prune drops expired windows and returns how many were removed.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := s.Prune(now); removed > 0 {
				zap.L().Debug("pruned expired rate limit windows", zap.Int("removed", removed))
			}
		}
	}
}
