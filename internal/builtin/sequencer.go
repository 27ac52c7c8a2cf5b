package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/proxy"
)

// Sequencer is a controller that takes a series of exposures on a camera
// instrument through the worker pool.
type Sequencer struct {
	cameraLoc location.Location
	interval  time.Duration
	exposure  time.Duration
	frames    int

	locator catalog.Locator
	logger  component.Logger

	mu     sync.RWMutex
	camera *proxy.Proxy
	taken  int
	failed int
	last   *Frame
}

// NewSequencer is the factory of the Sequencer class.
func NewSequencer(env catalog.Env) (component.Component, error) {
	raw := strings.TrimSpace(env.Options.GetString("camera", ""))
	if raw == "" {
		return nil, fmt.Errorf("%w: camera", ErrMissingOption)
	}
	loc, err := location.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}
	if loc.Kind != location.Instrument {
		return nil, fmt.Errorf("%w: camera %s is not an instrument", component.ErrInvalidOption, loc)
	}

	s := &Sequencer{
		cameraLoc: loc,
		locator:   env.Locator,
		logger:    component.WithFields(env.Logger),
	}
	if s.interval, err = env.Options.GetDuration("interval", time.Second); err != nil {
		return nil, err
	}
	if s.exposure, err = env.Options.GetDuration("exposure", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if s.frames, err = env.Options.GetInt("frames", 0); err != nil {
		return nil, err
	}
	if s.interval <= 0 || s.exposure <= 0 || s.frames < 0 {
		return nil, fmt.Errorf("%w: interval and exposure must be positive, frames not negative", component.ErrInvalidOption)
	}
	return s, nil
}

// Init binds the camera, which must already be registered.
func (s *Sequencer) Init(context.Context) error {
	if s.locator == nil {
		return errors.New("sequencer: no locator")
	}
	p, err := s.locator.Instrument(s.cameraLoc)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	s.mu.Lock()
	s.camera = p
	s.taken = 0
	s.failed = 0
	s.last = nil
	s.mu.Unlock()
	return nil
}

// Main exposes once per interval, starting immediately. It returns once the
// requested number of frames is taken; frames 0 runs until ctx is done.
// A busy camera skips the slot; any other camera error ends the sequence.
func (s *Sequencer) Main(ctx context.Context) error {
	s.mu.RLock()
	camera := s.camera
	s.mu.RUnlock()
	if camera == nil {
		return errors.New("sequencer: not initialised")
	}

	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	for {
		err := proxy.Do(ctx, camera, "expose", func(ctx context.Context, cam Exposer) error {
			f, err := cam.Expose(ctx, s.exposure)
			if err != nil {
				return err
			}
			s.record(&f)
			return nil
		})
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrCameraBusy):
			s.record(nil)
			s.logger.Debug("camera busy, skipping frame", "camera", s.cameraLoc.String())
		default:
			return fmt.Errorf("exposing on %s: %w", s.cameraLoc, err)
		}

		if s.done() {
			s.logger.Info("sequence complete", "camera", s.cameraLoc.String(), "frames", s.frames)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
		}
	}
}

func (s *Sequencer) Shutdown(context.Context) error {
	s.mu.Lock()
	s.camera = nil
	s.mu.Unlock()
	return nil
}

// Taken returns the number of frames taken since Init.
func (s *Sequencer) Taken() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taken
}

func (s *Sequencer) Describe() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]any{
		"camera":   s.cameraLoc.String(),
		"interval": s.interval.String(),
		"exposure": s.exposure.String(),
		"frames":   s.frames,
		"taken":    s.taken,
		"skipped":  s.failed,
	}
	if s.last != nil {
		out["last_seq"] = s.last.Seq
	}
	return out
}

func (s *Sequencer) record(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == nil {
		s.failed++
		return
	}
	s.taken++
	s.last = f
}

func (s *Sequencer) done() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames > 0 && s.taken >= s.frames
}
