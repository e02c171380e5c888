// Package mqtt provides MQTT publishing for lockbot.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// lockbot publishes lock activity so home automation (Home Assistant,
// Node-RED, another Gray Logic core) can react without polling the bridge.
// The bot never subscribes: lock actions are only accepted from
// authorised chats.
//
//	lockbot → MQTT Broker → home automation
//
// # Topics
//
// All topics live under the configured prefix (default "lockbot"):
//
//	lockbot/system/status        online/offline, retained, LWT
//	lockbot/lock/state           last state snapshot, retained
//	lockbot/lock/action/<name>   one message per completed action
//
// Payloads never contain chat identities or names.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishJSON(client.Topics().LockState(), snapshot, true)
package mqtt
