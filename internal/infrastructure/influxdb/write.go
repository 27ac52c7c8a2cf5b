package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/pool"
)

// Measurement names.
const (
	MeasurementLifecycle = "component_lifecycle"
	MeasurementPool      = "worker_pool"
)

// DefaultSampleInterval is how often SamplePool records pool load.
const DefaultSampleInterval = 10 * time.Second

// PoolSource reports worker pool counters. *pool.Pool satisfies it.
type PoolSource interface {
	Stats() pool.Stats
}

// WriteLifecycleMetric records one lifecycle transition.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteLifecycleMetric(lifecycle.Event{
//	    Op:       lifecycle.OpInit,
//	    Location: location.MustParse("instrument:SimCamera/cam1"),
//	    State:    lifecycle.StateInitialized,
//	    Duration: 3 * time.Millisecond,
//	})
func (c *Client) WriteLifecycleMetric(e lifecycle.Event) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(lifecyclePoint(e))
}

// Record implements lifecycle.Sink, so the client can be added to the
// manager directly.
func (c *Client) Record(e lifecycle.Event) {
	c.WriteLifecycleMetric(e)
}

// WritePoolStats records a snapshot of worker pool load.
func (c *Client) WritePoolStats(stats pool.Stats) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(poolPoint(stats, time.Now()))
}

// SamplePool writes src's stats every interval until ctx is cancelled.
// It blocks; run it in its own goroutine.
func (c *Client) SamplePool(ctx context.Context, src PoolSource, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.WritePoolStats(src.Stats())
		}
	}
}

// lifecyclePoint builds the component_lifecycle point for e. Location parts
// are tags; the outcome and timing are fields.
func lifecyclePoint(e lifecycle.Event) *write.Point {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]interface{}{
		"duration_ms": float64(e.Duration) / float64(time.Millisecond),
		"ok":          e.OK(),
	}
	if e.Err != nil {
		fields["error"] = e.ErrorText()
	}
	if e.TaskID != "" {
		fields["task_id"] = e.TaskID
	}

	return write.NewPoint(
		MeasurementLifecycle,
		map[string]string{
			"kind":  string(e.Location.Kind),
			"class": e.Location.Class,
			"name":  e.Location.Name,
			"op":    string(e.Op),
			"state": e.State.String(),
		},
		fields,
		ts,
	)
}

func poolPoint(stats pool.Stats, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPool,
		map[string]string{},
		map[string]interface{}{
			"workers":   stats.Workers,
			"queued":    stats.Queued,
			"active":    stats.Active,
			"submitted": stats.Submitted,
			"completed": stats.Completed,
			"failed":    stats.Failed,
			"rejected":  stats.Rejected,
		},
		ts,
	)
}
