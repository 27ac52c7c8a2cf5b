package mqtt

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/uts-core/internal/lifecycle"
)

// stateBuffer is how many state updates may be waiting for the broker.
const stateBuffer = 128

// RetainedPublisher publishes retained messages. *Client satisfies it.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// StateMessage is the retained payload on a component's state topic.
type StateMessage struct {
	Location  string    `json:"location"`
	State     string    `json:"state"`
	Op        string    `json:"op"`
	Error     string    `json:"error,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatePublisher mirrors lifecycle events onto retained component state
// topics. Publishing happens on a background goroutine so Record never
// waits for the broker; updates are dropped when the buffer is full.
//
// A removed component gets an empty retained message, which clears the
// topic on the broker.
type StatePublisher struct {
	pub    RetainedPublisher
	events chan lifecycle.Event
	logger Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewStatePublisher starts a publisher over pub.
func NewStatePublisher(pub RetainedPublisher, logger Logger) *StatePublisher {
	s := &StatePublisher{
		pub:    pub,
		events: make(chan lifecycle.Event, stateBuffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

// Record implements lifecycle.Sink.
func (s *StatePublisher) Record(e lifecycle.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
		if s.logger != nil {
			s.logger.Warn("MQTT state buffer full, dropping update", "location", e.Location.String())
		}
	}
}

// Close stops the publisher after the queued updates are sent.
func (s *StatePublisher) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	<-s.done
}

func (s *StatePublisher) loop() {
	defer close(s.done)
	for e := range s.events {
		topic := Topics{}.ComponentState(e.Location)
		payload, err := statePayload(e)
		if err == nil {
			err = s.pub.PublishRetained(topic, payload)
		}
		if err != nil && s.logger != nil {
			s.logger.Warn("failed to publish component state", "topic", topic, "error", err)
		}
	}
}

func statePayload(e lifecycle.Event) ([]byte, error) {
	if e.State == lifecycle.StateRemoved {
		return []byte{}, nil
	}
	return json.Marshal(StateMessage{
		Location:  e.Location.String(),
		State:     e.State.String(),
		Op:        string(e.Op),
		Error:     e.ErrorText(),
		TaskID:    e.TaskID,
		Timestamp: e.Time.UTC(),
	})
}
