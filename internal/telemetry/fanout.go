package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/geordon/internal/logging"
	"github.com/danmuck/geordon/internal/observability"
)

const deliverTimeout = 2 * time.Second

// Deliverer is one downstream consumer driven by the fan-out goroutine.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
	Close() error
}

// Fanout buffers events from the dispatch loop and delivers them to every
// sink on its own goroutine. A full buffer drops the event.
type Fanout struct {
	events chan Event
	sinks  []Deliverer
}

func NewFanout(buffer int, sinks ...Deliverer) *Fanout {
	if buffer <= 0 {
		buffer = DefaultConfig().Buffer
	}
	return &Fanout{
		events: make(chan Event, buffer),
		sinks:  sinks,
	}
}

func (f *Fanout) Publish(ev Event) {
	select {
	case f.events <- ev:
	default:
		observability.RecordTelemetryDropped()
	}
}

// Run delivers until ctx is done.
func (f *Fanout) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.events:
			f.deliver(ctx, ev)
		}
	}
}

// Start runs delivery on its own goroutine. The returned stop cancels
// delivery, waits for the goroutine to return, then closes every sink.
func (f *Fanout) Start(ctx context.Context) (stop func() error) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(runCtx)
	}()
	return func() error {
		cancel()
		<-done
		return f.Close()
	}
}

func (f *Fanout) deliver(ctx context.Context, ev Event) {
	for _, sink := range f.sinks {
		dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := sink.Deliver(dctx, ev)
		cancel()
		if err != nil {
			observability.RecordTelemetryFailure(sink.Name())
			logging.Warnf("telemetry sink=%s kind=%s err=%v", sink.Name(), ev.Kind, err)
		}
	}
}

func (f *Fanout) Sinks() []string {
	out := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		out = append(out, s.Name())
	}
	return out
}

func (f *Fanout) Close() error {
	errs := make([]error, 0, len(f.sinks))
	for _, s := range f.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
