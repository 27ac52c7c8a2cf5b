// Package registry holds the live components of one kind, keyed by location.
//
// The manager owns three registries (instruments, controllers, drivers) and
// is the only writer. Components read them through the manager's locator
// while other lifecycle operations are in progress, which is why every
// method takes the registry's own lock rather than relying on the caller.
package registry
