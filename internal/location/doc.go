// Package location defines the address of a managed component.
//
// A Location names a component by kind, class and instance name:
//
//	instrument:FooCam/cam1
//	│          │      └── name: unique within kind and class
//	│          └───────── class: the factory that builds it
//	└──────────────────── kind: instrument, controller or driver
//
// Locations are immutable values compared structurally, so they can be used
// directly as map keys. Parse and String round-trip.
package location
