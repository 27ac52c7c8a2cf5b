// Package mqtt provides MQTT client connectivity for the uts daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Retained component state topics fed by lifecycle events
//
// # Topics
//
//	uts/system/status                         online / offline (LWT), retained
//	uts/component/{kind}/{class}/{name}/state lifecycle state, retained
//	uts/command/{kind}/{class}/{name}         remote lifecycle commands
//	uts/ack/{kind}/{class}/{name}             command acknowledgements
//
// Commands are interpreted by package remote; this package only moves bytes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	states := mqtt.NewStatePublisher(client, log)
//	defer states.Close()
//	mgr.AddSink(states)
package mqtt
