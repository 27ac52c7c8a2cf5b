// Package lifecycle defines component states and the events the manager
// emits on every transition.
//
//	add ──► registered ──init──► initialized ──start──► running
//	                                                       │ exit
//	                            failed ◄── error ──────────┤
//	                                                       ▼
//	                        removed ◄──shutdown/remove── stopped
//
// Sinks (journal, metrics, MQTT state publisher, time series) subscribe to
// the events; the manager never depends on them.
package lifecycle
