package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
)

// Frame is one simulated exposure.
type Frame struct {
	Seq      uint64        `json:"seq"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Exposure time.Duration `json:"exposure"`
	Time     time.Time     `json:"time"`

	// Mean is the mean pixel value, proportional to the exposure.
	Mean float64 `json:"mean"`
}

// Exposer is implemented by instruments that take exposures.
type Exposer interface {
	Expose(ctx context.Context, exposure time.Duration) (Frame, error)
}

// fullWell is the exposure at which a simulated pixel saturates.
const fullWell = 10 * time.Second

// SimCamera is a simulated camera instrument. With a trigger option naming a
// driver location it exposes on every tick of that driver while running.
type SimCamera struct {
	width, height int
	exposure      time.Duration
	maxExposure   time.Duration
	trigger       string

	loc     location.Location
	locator catalog.Locator
	logger  component.Logger

	busy sync.Mutex

	mu     sync.RWMutex
	source Trigger
	seq    uint64
	last   *Frame
}

// NewSimCamera is the factory of the SimCamera class.
func NewSimCamera(env catalog.Env) (component.Component, error) {
	c := &SimCamera{
		trigger: strings.TrimSpace(env.Options.GetString("trigger", "")),
		loc:     env.Location,
		locator: env.Locator,
		logger:  component.WithFields(env.Logger),
	}

	var err error
	if c.width, err = env.Options.GetInt("width", 640); err != nil {
		return nil, err
	}
	if c.height, err = env.Options.GetInt("height", 480); err != nil {
		return nil, err
	}
	if c.exposure, err = env.Options.GetDuration("exposure", 10*time.Millisecond); err != nil {
		return nil, err
	}
	if c.maxExposure, err = env.Options.GetDuration("max_exposure", time.Minute); err != nil {
		return nil, err
	}
	if c.width <= 0 || c.height <= 0 {
		return nil, fmt.Errorf("%w: width and height must be positive", component.ErrInvalidOption)
	}
	if err := c.checkExposure(c.exposure); err != nil {
		return nil, err
	}
	return c, nil
}

// Init resolves the trigger driver, which must already be registered.
func (c *SimCamera) Init(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.last = nil
	c.source = nil

	if c.trigger == "" {
		return nil
	}
	loc, err := location.Parse(c.trigger)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	if loc.Kind != location.Driver {
		return fmt.Errorf("%w: trigger %s is not a driver", component.ErrInvalidOption, loc)
	}
	if c.locator == nil {
		return fmt.Errorf("trigger %s: no locator", loc)
	}
	target, err := c.locator.Lookup(loc)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	src, ok := target.(Trigger)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTrigger, loc)
	}
	c.source = src
	return nil
}

// Main exposes on every trigger tick, or idles until ctx is done when the
// camera has no trigger.
func (c *SimCamera) Main(ctx context.Context) error {
	c.mu.RLock()
	src := c.source
	c.mu.RUnlock()
	if src == nil {
		<-ctx.Done()
		return nil
	}

	ticks, cancel := src.Subscribe(1)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticks:
			if !ok {
				c.logger.Warn("trigger closed", "trigger", c.trigger)
				<-ctx.Done()
				return nil
			}
			if _, err := c.Expose(ctx, c.exposure); err != nil {
				c.logger.Warn("triggered exposure failed", "error", err)
			}
		}
	}
}

func (c *SimCamera) Shutdown(context.Context) error {
	c.mu.Lock()
	c.source = nil
	c.mu.Unlock()
	return nil
}

// Expose takes one exposure. Zero means the configured default. A second
// exposure while one is in progress fails with ErrCameraBusy.
func (c *SimCamera) Expose(ctx context.Context, exposure time.Duration) (Frame, error) {
	if exposure == 0 {
		exposure = c.exposure
	}
	if err := c.checkExposure(exposure); err != nil {
		return Frame{}, err
	}
	if !c.busy.TryLock() {
		return Frame{}, ErrCameraBusy
	}
	defer c.busy.Unlock()

	timer := time.NewTimer(exposure)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-timer.C:
	}

	mean := 65535 * float64(exposure) / float64(fullWell)
	if mean > 65535 {
		mean = 65535
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	f := Frame{
		Seq:      c.seq,
		Width:    c.width,
		Height:   c.height,
		Exposure: exposure,
		Time:     time.Now(),
		Mean:     mean,
	}
	c.last = &f
	c.logger.Debug("exposure complete", "seq", f.Seq, "exposure", exposure)
	return f, nil
}

// LastFrame returns the most recent frame.
func (c *SimCamera) LastFrame() (Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Frame{}, false
	}
	return *c.last, true
}

func (c *SimCamera) Describe() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[string]any{
		"width":    c.width,
		"height":   c.height,
		"exposure": c.exposure.String(),
		"frames":   c.seq,
	}
	if c.trigger != "" {
		out["trigger"] = c.trigger
	}
	if c.last != nil {
		out["last_frame"] = c.last.Time
	}
	return out
}

func (c *SimCamera) checkExposure(d time.Duration) error {
	if d <= 0 || (c.maxExposure > 0 && d > c.maxExposure) {
		return fmt.Errorf("%w: %s (max %s)", ErrInvalidExposure, d, c.maxExposure)
	}
	return nil
}
