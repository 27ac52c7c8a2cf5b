// Package component defines the capability shared by every managed
// instrument, controller and driver, plus the option bag their factories read.
//
// Lifecycle as seen by a component:
//
//	Init(ctx) ──► Main(ctx) ... ctx cancelled ──► Shutdown(ctx)
//	 manager        pool worker                     manager
//
// Components never hold a reference to the manager. Anything they need from
// the rest of the process arrives through the catalog.Env given to their
// factory.
package component
