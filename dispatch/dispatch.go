package dispatch

import (
	"context"
	"time"

	"github.com/wirehall/quorum/chat"
	"github.com/wirehall/quorum/logger"
)

// Handler is one consumer of chat events. Handle is only called when
// ShouldHandle returned true for the same event.
type Handler interface {
	ShouldHandle(event chat.Event) bool
	Handle(event chat.Event) error
}

// Connector is the piece of the chat gateway the dispatcher needs.
type Connector interface {
	ConnectEventStream(ctx context.Context) (chat.Stream, error)
}

// Dispatcher owns the single live subscription to the event stream and
// fans each event out to its handlers, strictly in arrival order. There is
// no buffering or replay: events missed while reconnecting are gone.
type Dispatcher struct {
	connector Connector
	handlers  []Handler

	minBackoff time.Duration
	maxBackoff time.Duration
}

// New builds a dispatcher over a fixed, ordered handler list.
func New(connector Connector, handlers []Handler) *Dispatcher {
	return &Dispatcher{
		connector:  connector,
		handlers:   handlers,
		minBackoff: time.Second,
		maxBackoff: time.Minute,
	}
}

// Run consumes the stream until ctx is cancelled, reconnecting with
// exponential backoff on any connection-level fault.
func (d *Dispatcher) Run(ctx context.Context) {
	backoff := d.minBackoff

	for ctx.Err() == nil {
		stream, err := d.connector.ConnectEventStream(ctx)
		if err != nil {
			logger.Err().Printf("Failed to connect event stream: %s", err.Error())
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, d.maxBackoff)
			continue
		}

		logger.Out().Println("Event stream connected")
		backoff = d.minBackoff
		d.consume(ctx, stream)
		_ = stream.Close()

		if !sleep(ctx, d.minBackoff) {
			return
		}
	}
}

func (d *Dispatcher) consume(ctx context.Context, stream chat.Stream) {
	// unblock the pending read when ctx is cancelled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-done:
		}
	}()

	for {
		event, err := stream.Next()
		if err != nil {
			if ctx.Err() == nil {
				logger.Err().Printf("Event stream lost: %s", err.Error())
			}
			return
		}
		if !d.dispatch(event) {
			return
		}
	}
}

// dispatch runs every matching handler sequentially. A handler returning an
// error is contained and logged; a panic escaping a handler tears the
// connection down. Returns false when the connection should be dropped.
func (d *Dispatcher) dispatch(event chat.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err().Printf("Handler panic on %q event: %v", event.Type, r)
			ok = false
		}
	}()

	for _, handler := range d.handlers {
		if !handler.ShouldHandle(event) {
			continue
		}
		if err := handler.Handle(event); err != nil {
			logger.Err().Printf("Failed to handle %q event: %s", event.Type, err.Error())
		}
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
