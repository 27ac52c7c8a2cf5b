// Package journal persists component lifecycle events to SQLite.
//
// Every event the manager emits becomes one row in lifecycle_events. The
// journal is an append-only history for operators; registry state itself
// is never persisted and is rebuilt from configuration on every start.
package journal
