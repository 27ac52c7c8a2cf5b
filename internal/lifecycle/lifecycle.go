package lifecycle

import (
	"fmt"
	"time"

	"github.com/nerrad567/uts-core/internal/location"
)

// State is where a registered component is in its lifecycle.
type State int

const (
	// StateRegistered indicates the component was constructed but not initialised.
	StateRegistered State = iota
	// StateInitialized indicates Init succeeded but main is not running.
	StateInitialized
	// StateRunning indicates main was submitted to the pool and has not returned.
	StateRunning
	// StateStopped indicates main returned or was cancelled.
	StateStopped
	// StateFailed indicates Init, main or Shutdown returned an error.
	StateFailed
	// StateRemoved indicates the component is no longer registered.
	StateRemoved
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	st, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseState converts a state name back to a State.
func ParseState(name string) (State, error) {
	for st := StateRegistered; st <= StateRemoved; st++ {
		if st.String() == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("lifecycle: unknown state %q", name)
}

// States lists every state, for metrics that report one series per state.
func States() []State {
	return []State{StateRegistered, StateInitialized, StateRunning, StateStopped, StateFailed}
}

// Op is a lifecycle operation recorded in an Event.
type Op string

// Lifecycle operations.
const (
	OpAdd      Op = "add"
	OpRemove   Op = "remove"
	OpInit     Op = "init"
	OpStart    Op = "start"
	OpExit     Op = "exit"
	OpShutdown Op = "shutdown"
)

// Event describes one lifecycle transition of a component.
type Event struct {
	Time     time.Time         `json:"time"`
	Op       Op                `json:"op"`
	Location location.Location `json:"location"`
	State    State             `json:"state"`
	Err      error             `json:"-"`
	Duration time.Duration     `json:"duration_ns"`

	// TaskID is the pool handle ID for start and exit events.
	TaskID string `json:"task_id,omitempty"`
}

// OK reports whether the operation succeeded.
func (e Event) OK() bool {
	return e.Err == nil
}

// ErrorText returns the error text, or "" when the operation succeeded.
func (e Event) ErrorText() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Sink receives lifecycle events. Record is called synchronously on the
// manager's operation path, so implementations must not block for long and
// must not call back into the manager.
type Sink interface {
	Record(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Record calls f(e).
func (f SinkFunc) Record(e Event) {
	f(e)
}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

// Record implements Sink.
func (f Fanout) Record(e Event) {
	for _, s := range f {
		if s != nil {
			s.Record(e)
		}
	}
}
