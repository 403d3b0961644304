package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/dsflow/pkg/domain"
)

// StreamManager fans run events out to watchers of that run.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.StepEvent]struct{} // RunID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan domain.StepEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a watcher. The returned cancel func must be called
// exactly once; it closes the channel.
func (sm *StreamManager) Subscribe(runID string) (<-chan domain.StepEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.StepEvent, 32)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan domain.StepEvent]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Subscribers returns the number of watchers of a run.
func (sm *StreamManager) Subscribers(runID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[runID])
}

// Broadcast hands ev to every watcher of its run without blocking.
func (sm *StreamManager) Broadcast(ev domain.StepEvent) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[ev.RunID] {
		select {
		case ch <- ev:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping event", "run_id", ev.RunID, "step", ev.Step)
		}
	}
}
