// sse.go — SSE event bus + handler for store-change notifications.
package apiserver

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comppolicylab/pingpong-sub002/internal/thread"
	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
)

// Event is one SSE frame.
type Event struct {
	Type     string
	ThreadID string
	Data     any
}

// EventBus fans store-change events out to SSE subscribers.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// NewEventBus creates the bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]chan Event)}
}

// Publish broadcasts an event. Slow subscribers drop frames instead of
// blocking the publisher.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a subscriber channel.
func (b *EventBus) Subscribe(id string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 32)
	b.subscribers[id] = ch
	return ch
}

// Unsubscribe removes a subscriber. The channel is not closed; the handler
// exits via the request context and the channel is collected.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// watch hooks the manager's change feed into the bus.
func (s *Server) watch(m *thread.Manager) {
	threadID := m.ThreadID()
	m.SetOnChange(func() {
		s.bus.Publish(Event{Type: "thread_changed", ThreadID: threadID})
	})
}

// sseHandler streams change notifications for one thread. Clients re-read
// the derived views on each event.
func (s *Server) sseHandler(c *gin.Context) {
	threadID := c.Param("id")
	clientID := fmt.Sprintf("sse-%s-%d", threadID, time.Now().UnixNano())
	ch := s.bus.Subscribe(clientID)
	defer func() {
		s.bus.Unsubscribe(clientID)
		logger.Info("sse client disconnected", logger.FieldThreadID, threadID)
	}()

	logger.Info("sse client connected", logger.FieldThreadID, threadID)

	c.Stream(func(w io.Writer) bool {
		// Reuse one timer across loop turns instead of allocating per tick.
		keepalive := time.NewTimer(30 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return false
				}
				if evt.ThreadID != threadID {
					continue
				}
				c.SSEvent(evt.Type, gin.H{"thread_id": evt.ThreadID})
				if !keepalive.Stop() {
					select {
					case <-keepalive.C:
					default:
					}
				}
				keepalive.Reset(30 * time.Second)
				return true
			case <-keepalive.C:
				c.SSEvent("ping", "keepalive")
				keepalive.Reset(30 * time.Second)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		}
	})
}
