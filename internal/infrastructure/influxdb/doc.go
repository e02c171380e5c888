// Package influxdb provides InfluxDB connectivity for lockbot.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, lock telemetry writing, and health monitoring.
//
// # Purpose
//
// Two measurements are written:
//   - lock_state: state code, door state, battery charge and critical flag
//     from every successful status read
//   - lock_action: one point per bridge action with its outcome and latency
//
// Points are tagged by bridge device ID only; chat identities are never written.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteLockAction("12345", "unlock", "success", 850*time.Millisecond, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a callback.
// Connection and health check errors are returned directly.
package influxdb
