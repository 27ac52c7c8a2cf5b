// Package influxdb records component lifecycle history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring.
//
// # Measurements
//
//	component_lifecycle  tags: kind, class, name, op, state
//	                     fields: duration_ms, ok, error, task_id
//	worker_pool          fields: workers, queued, active, submitted,
//	                             completed, failed, rejected
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "uts",
//	    Bucket:  "lifecycle",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	mgr.AddSink(client)
//	go client.SamplePool(ctx, workers, influxdb.DefaultSampleInterval)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes, so Record can
// be called from pool workers without stalling them.
//
// # Error Handling
//
// Write errors are delivered asynchronously via SetOnError.
// Connection and health check errors are returned directly.
package influxdb
