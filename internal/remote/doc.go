// Package remote lets MQTT clients drive component lifecycles.
//
// A client publishes
//
//	uts/command/instrument/SimCamera/cam1  {"id":"c-1","action":"init","options":{"width":1024}}
//
// and receives on uts/ack/instrument/SimCamera/cam1
//
//	{"command_id":"c-1","status":"accepted",...}
//
// or a failed status with an error code derived from the manager's error
// sentinels (RESOLUTION_FAILED, ALREADY_RUNNING, ...).
//
// Commands are queued by the MQTT callback and applied in arrival order by a
// single goroutine, so a slow Shutdown never stalls the broker connection.
package remote
