package chat

import (
	"context"
	"sync"
	"time"

	"github.com/smallnest/genaistack/log"
)

// EventType identifies a session event.
type EventType string

const (
	// EventTurnAppended fires after a turn is added, including the optimistic
	// user turn.
	EventTurnAppended EventType = "turn_appended"

	// EventLogsReplaced fires when a reply carries execution logs.
	EventLogsReplaced EventType = "logs_replaced"

	// EventStateChanged fires on every state transition.
	EventStateChanged EventType = "state_changed"

	// EventHistoryLoaded fires when remote history replaced the turns.
	EventHistoryLoaded EventType = "history_loaded"

	// EventCleared fires when turns and logs are cleared or reset.
	EventCleared EventType = "cleared"
)

// Event describes a change to a session.
type Event struct {
	Type       EventType
	WorkflowID int64
	State      State
	Turn       Turn
	Logs       []LogEntry
	Err        error
	Timestamp  time.Time
}

// Listener observes session events.
type Listener interface {
	OnSessionEvent(ctx context.Context, event Event)
}

// ListenerFunc is a function adapter for Listener.
type ListenerFunc func(ctx context.Context, event Event)

// OnSessionEvent implements Listener.
func (f ListenerFunc) OnSessionEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

type listenerSet struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    log.Logger
}

func (ls *listenerSet) setLogger(logger log.Logger) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.logger = logger
}

func (ls *listenerSet) add(l Listener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.listeners = append(ls.listeners, l)
}

// notify calls listeners in registration order. Events must reach a renderer
// in the order the session produced them, so calls are sequential.
func (ls *listenerSet) notify(ctx context.Context, event Event) {
	ls.mu.RLock()
	listeners := make([]Listener, len(ls.listeners))
	copy(listeners, ls.listeners)
	logger := ls.logger
	ls.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, l := range listeners {
		func() {
			defer func() {
				// A panicking listener must not break the session.
				if r := recover(); r != nil && logger != nil {
					logger.Warn("session listener panicked on %s: %v", event.Type, r)
				}
			}()
			l.OnSessionEvent(ctx, event)
		}()
	}
}
