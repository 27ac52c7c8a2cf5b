// Package catalog maps class names to component factories.
//
// Classes are registered in code at startup (see package builtin) and may be
// extended without recompiling through YAML manifests placed in the
// manager's include paths. A manifest class is an alias: it reuses the
// factory of its base class and overrides its default options and kinds.
//
//	Resolve("AllSkyCam")
//	  ├─ Catalog ────────── not found
//	  └─ include paths ──── classes.yaml: AllSkyCam → base SimCamera
//	                          └─ Catalog: SimCamera ✓
//
// Factories receive an Env carrying the location, merged options, a logger
// scoped to the component and a Locator for reaching other components.
package catalog
