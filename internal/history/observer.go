package history

import "github.com/google/uuid"

// EventType identifies a history mutation reported to observers.
type EventType string

// Event types, fired after the mutation completes and before the public
// call returns.
const (
	EventRecorded       EventType = "operation_recorded"
	EventUndone         EventType = "operation_undone"
	EventRedone         EventType = "operation_redone"
	EventBranchCreated  EventType = "branch_created"
	EventBranchSwitched EventType = "branch_switched"
	EventBranchDeleted  EventType = "branch_deleted"
	EventCleared        EventType = "history_cleared"
)

// Event carries what changed. Branch is the affected branch; FromBranch is
// set only on switches.
type Event struct {
	Type        EventType
	Description string
	Branch      string
	FromBranch  string
	NodeID      uint64
}

// Observer receives history events synchronously, in registration order.
// Callbacks must not call back into the manager: mutating calls fail with
// ErrReentrantCall and queries return their zero values.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Notify implements Observer.
func (f ObserverFunc) Notify(e Event) { f(e) }

type registeredObserver struct {
	handle string
	obs    Observer
}

// AddObserver registers an observer and returns a removal handle. Called
// from inside a callback it registers nothing and returns an empty handle.
func (m *Manager) AddObserver(o Observer) string {
	if m.inNotify.Load() {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	handle := uuid.NewString()
	m.observers = append(m.observers, registeredObserver{handle: handle, obs: o})
	return handle
}

// RemoveObserver unregisters the observer for the given handle. Unknown
// handles are ignored, as are calls from inside a callback.
func (m *Manager) RemoveObserver(handle string) {
	if m.inNotify.Load() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.observers {
		if r.handle == handle {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

// notifyLocked dispatches an event to every observer in registration
// order. Called with the manager lock held; the reentrancy flag makes a
// callback's call into the manager fail fast instead of deadlocking.
func (m *Manager) notifyLocked(ev Event) {
	m.inNotify.Store(true)
	defer m.inNotify.Store(false)
	for _, r := range m.observers {
		m.safeNotify(r.obs, ev)
	}
}

// safeNotify isolates observer panics; a broken panel must not corrupt
// history state.
func (m *Manager) safeNotify(o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("history observer panicked", "event", string(ev.Type), "panic", r)
		}
	}()
	o.Notify(ev)
}
