package events

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"gatekeeper/internal/models"
)

// Dispatcher wraps a sink with storm damping: events beyond the configured
// rate are counted and dropped instead of queued, so a sustained attack
// cannot turn the event sink into a second victim. Critical events bypass
// the limiter.
type Dispatcher struct {
	sink    Sink
	limiter *rate.Limiter
	dropped atomic.Int64
}

var _ Sink = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher allowing maxPerSecond sustained events
// with the given burst. A maxPerSecond of zero disables damping.
func NewDispatcher(sink Sink, maxPerSecond float64, burst int) *Dispatcher {
	var limiter *rate.Limiter
	if maxPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxPerSecond), burst)
	}
	return &Dispatcher{sink: sink, limiter: limiter}
}

func (d *Dispatcher) Emit(event models.SecurityEvent) {
	if d.limiter != nil && event.Severity != models.SeverityCritical && !d.limiter.Allow() {
		n := d.dropped.Add(1)
		if n%1000 == 1 {
			slog.Warn("security event sink saturated, dropping events", "dropped_total", n)
		}
		return
	}
	d.sink.Emit(event)
}

// Dropped returns the number of events discarded by damping.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Dispatcher) Close() error {
	if n := d.dropped.Load(); n > 0 {
		slog.Warn("security events dropped during run", "dropped_total", n)
	}
	return d.sink.Close()
}
