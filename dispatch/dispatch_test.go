package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/wirehall/quorum/chat"
)

type fakeStream struct {
	mu     sync.Mutex
	events []chat.Event
	err    error
}

func (s *fakeStream) Next() (chat.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		if s.err != nil {
			return chat.Event{}, s.err
		}
		return chat.Event{}, io.EOF
	}
	event := s.events[0]
	s.events = s.events[1:]
	return event, nil
}

func (s *fakeStream) Close() error {
	return nil
}

type fakeConnector struct {
	mu       sync.Mutex
	streams  []chat.Stream
	attempts int
}

func (c *fakeConnector) ConnectEventStream(ctx context.Context) (chat.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if len(c.streams) == 0 {
		return nil, errors.New("no more streams")
	}
	stream := c.streams[0]
	c.streams = c.streams[1:]
	return stream, nil
}

type recordingHandler struct {
	name    string
	matches func(chat.Event) bool
	err     error
	panics  bool
	calls   chan string
}

func (h *recordingHandler) ShouldHandle(event chat.Event) bool {
	return h.matches(event)
}

func (h *recordingHandler) Handle(event chat.Event) error {
	h.calls <- h.name + ":" + event.Ref
	if h.panics {
		panic("handler exploded")
	}
	return h.err
}

func matchAll(chat.Event) bool { return true }

func runDispatcher(t *testing.T, connector Connector, handlers []Handler) (cancel func()) {
	t.Helper()

	d := New(connector, handlers)
	d.minBackoff = time.Millisecond
	d.maxBackoff = 5 * time.Millisecond

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	return func() {
		cancelCtx()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not stop")
		}
	}
}

func expectCall(t *testing.T, calls chan string, want string) {
	t.Helper()
	select {
	case got := <-calls:
		if got != want {
			t.Fatalf("expected call %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for call %q", want)
	}
}

func TestHandlersRunInOrderPerEvent(t *testing.T) {
	calls := make(chan string, 16)
	first := &recordingHandler{name: "first", matches: matchAll, calls: calls}
	second := &recordingHandler{name: "second", matches: matchAll, calls: calls}

	connector := &fakeConnector{streams: []chat.Stream{
		&fakeStream{events: []chat.Event{{Type: "message", Ref: "e1"}, {Type: "message", Ref: "e2"}}},
	}}

	stop := runDispatcher(t, connector, []Handler{first, second})
	defer stop()

	// every handler for e1 completes before any handler sees e2
	expectCall(t, calls, "first:e1")
	expectCall(t, calls, "second:e1")
	expectCall(t, calls, "first:e2")
	expectCall(t, calls, "second:e2")
}

func TestHandlerErrorIsContained(t *testing.T) {
	calls := make(chan string, 16)
	failing := &recordingHandler{name: "failing", matches: matchAll, err: errors.New("boom"), calls: calls}

	connector := &fakeConnector{streams: []chat.Stream{
		&fakeStream{events: []chat.Event{{Ref: "e1"}, {Ref: "e2"}}},
	}}

	stop := runDispatcher(t, connector, []Handler{failing})
	defer stop()

	expectCall(t, calls, "failing:e1")
	expectCall(t, calls, "failing:e2")
}

func TestHandlerPanicTriggersReconnect(t *testing.T) {
	calls := make(chan string, 16)
	panicking := &recordingHandler{name: "h", matches: func(e chat.Event) bool { return e.Ref == "e1" }, panics: true, calls: calls}
	quiet := &recordingHandler{name: "h2", matches: func(e chat.Event) bool { return e.Ref == "e2" }, calls: calls}

	connector := &fakeConnector{streams: []chat.Stream{
		&fakeStream{events: []chat.Event{{Ref: "e1"}, {Ref: "never-delivered"}}},
		&fakeStream{events: []chat.Event{{Ref: "e2"}}},
	}}

	stop := runDispatcher(t, connector, []Handler{panicking, quiet})
	defer stop()

	expectCall(t, calls, "h:e1")
	// the first connection is dropped, the rest of its events are lost
	expectCall(t, calls, "h2:e2")
}

func TestStreamErrorTriggersReconnect(t *testing.T) {
	calls := make(chan string, 16)
	handler := &recordingHandler{name: "h", matches: matchAll, calls: calls}

	connector := &fakeConnector{streams: []chat.Stream{
		&fakeStream{events: []chat.Event{{Ref: "e1"}}, err: errors.New("connection reset")},
		&fakeStream{events: []chat.Event{{Ref: "e2"}}},
	}}

	stop := runDispatcher(t, connector, []Handler{handler})
	defer stop()

	expectCall(t, calls, "h:e1")
	expectCall(t, calls, "h:e2")
}

func TestUnmatchedEventsAreSkipped(t *testing.T) {
	calls := make(chan string, 16)
	handler := &recordingHandler{name: "h", matches: func(e chat.Event) bool { return e.Type == "message" }, calls: calls}

	connector := &fakeConnector{streams: []chat.Stream{
		&fakeStream{events: []chat.Event{
			{}, // malformed: no type at all
			{Type: "presence_change", Ref: "ignored"},
			{Type: "message", Ref: "e1"},
		}},
	}}

	stop := runDispatcher(t, connector, []Handler{handler})
	defer stop()

	expectCall(t, calls, "h:e1")
	select {
	case got := <-calls:
		t.Fatalf("unexpected extra call %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}
