package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/uts-core/internal/lifecycle"
)

// DefaultBuffer is the number of events a Sink queues before dropping.
const DefaultBuffer = 256

// writeTimeout bounds a single insert.
const writeTimeout = 5 * time.Second

// Logger defines the logging interface used by the Sink.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink writes lifecycle events to a Repository from a background goroutine.
// Record never blocks: when the buffer is full the event is dropped and
// counted.
type Sink struct {
	repo    Repository
	events  chan lifecycle.Event
	logger  Logger
	dropped atomic.Uint64

	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	started bool
}

// NewSink creates a sink over repo. A buffer of zero or less means DefaultBuffer.
func NewSink(repo Repository, buffer int) *Sink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Sink{
		repo:   repo,
		events: make(chan lifecycle.Event, buffer),
		logger: noopLogger{},
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the sink.
func (s *Sink) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start launches the writer goroutine. Calling it twice is a no-op.
func (s *Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.loop()
}

// Record implements lifecycle.Sink.
func (s *Sink) Record(e lifecycle.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
		s.logger.Warn("journal buffer full, dropping event", "location", e.Location.String(), "op", string(e.Op))
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are written
// or ctx is done.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	close(s.events)
	s.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sink) loop() {
	defer close(s.done)
	for e := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.repo.Create(ctx, FromEvent(e)); err != nil {
			s.logger.Error("failed to write journal entry", "location", e.Location.String(), "error", err)
		}
		cancel()
	}
}
