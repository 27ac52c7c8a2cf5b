// Package builtin provides the component classes compiled into utsd.
//
//	Daemon     driver      supervises an external process
//	Ticker     driver      emits ticks at a fixed interval
//	SimCamera  instrument  simulated camera, optionally ticker-triggered
//	Sequencer  controller  takes exposures on a camera via the worker pool
//
// Register adds them to a catalog. Manifests in the include paths can alias
// them under other names with different defaults.
package builtin
