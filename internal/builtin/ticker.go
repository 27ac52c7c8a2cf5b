package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
)

// Trigger is a driver that emits ticks other components can follow.
type Trigger interface {
	// Subscribe returns a channel receiving every tick until cancel is
	// called. Ticks are dropped for a subscriber whose buffer is full.
	Subscribe(buffer int) (ticks <-chan time.Time, cancel func())
}

// Ticker is a driver emitting a tick at a fixed interval while running.
type Ticker struct {
	interval time.Duration
	logger   component.Logger

	mu     sync.Mutex
	subs   map[int]chan time.Time
	nextID int
	ticks  uint64
	last   time.Time
}

// NewTicker is the factory of the Ticker class.
func NewTicker(env catalog.Env) (component.Component, error) {
	interval, err := env.Options.GetDuration("interval", time.Second)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", component.ErrInvalidOption)
	}
	return &Ticker{
		interval: interval,
		logger:   component.WithFields(env.Logger),
		subs:     make(map[int]chan time.Time),
	}, nil
}

func (t *Ticker) Init(context.Context) error {
	t.mu.Lock()
	t.ticks = 0
	t.last = time.Time{}
	t.mu.Unlock()
	return nil
}

// Main ticks until ctx is done.
func (t *Ticker) Main(ctx context.Context) error {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tk.C:
			t.tick(now)
		}
	}
}

// Shutdown closes every subscription.
func (t *Ticker) Shutdown(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	return nil
}

func (t *Ticker) Subscribe(buffer int) (<-chan time.Time, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan time.Time, buffer)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				close(c)
				delete(t.subs, id)
			}
		})
	}
}

// Ticks returns the number of ticks since Init.
func (t *Ticker) Ticks() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

// Last returns the time of the latest tick.
func (t *Ticker) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Ticker) Describe() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[string]any{
		"interval":    t.interval.String(),
		"ticks":       t.ticks,
		"subscribers": len(t.subs),
	}
	if !t.last.IsZero() {
		out["last_tick"] = t.last
	}
	return out
}

func (t *Ticker) tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks++
	t.last = now
	for _, ch := range t.subs {
		select {
		case ch <- now:
		default:
		}
	}
}

// Fire emits a tick immediately, outside the interval.
func (t *Ticker) Fire() {
	t.tick(time.Now())
}
