package builtin

import (
	"fmt"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
)

// Class names.
const (
	ClassDaemon    = "Daemon"
	ClassTicker    = "Ticker"
	ClassSimCamera = "SimCamera"
	ClassSequencer = "Sequencer"
)

// Classes returns the built-in classes.
func Classes() []catalog.Class {
	return []catalog.Class{
		{
			Name:        ClassDaemon,
			Kinds:       []location.Kind{location.Driver},
			Description: "Supervises an external process, restarting it after failures",
			Defaults: component.Options{
				"restart":          true,
				"restart_delay":    "5s",
				"max_restarts":     defaultMaxRestarts,
				"graceful_timeout": "10s",
			},
			New: NewDaemon,
		},
		{
			Name:        ClassTicker,
			Kinds:       []location.Kind{location.Driver},
			Description: "Emits ticks at a fixed interval for other components to follow",
			Defaults:    component.Options{"interval": "1s"},
			New:         NewTicker,
		},
		{
			Name:        ClassSimCamera,
			Kinds:       []location.Kind{location.Instrument},
			Description: "Simulated camera, optionally triggered by a ticker driver",
			Defaults: component.Options{
				"width":    640,
				"height":   480,
				"exposure": "10ms",
			},
			New: NewSimCamera,
		},
		{
			Name:        ClassSequencer,
			Kinds:       []location.Kind{location.Controller},
			Description: "Takes a series of exposures on a camera instrument",
			Defaults: component.Options{
				"interval": "1s",
				"exposure": "100ms",
			},
			New: NewSequencer,
		},
	}
}

// Register adds the built-in classes to cat.
func Register(cat *catalog.Catalog) error {
	for _, cls := range Classes() {
		if err := cat.Register(cls); err != nil {
			return fmt.Errorf("registering %s: %w", cls.Name, err)
		}
	}
	return nil
}
