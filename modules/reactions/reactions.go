// Package reactions turns emoji reactions on bridged chat messages into
// vote adjustments on the matching question or answer.
package reactions

import (
	"errors"
	"fmt"

	"github.com/wirehall/quorum/chat"
	"github.com/wirehall/quorum/store"
)

// Store is the counter slice of the domain store. Both increments report
// store.ErrNotFound when no row matches the reference.
type Store interface {
	IncrementQuestionVotes(threadRef string, delta int) error
	IncrementAnswerVotes(messageRef string, delta int) error
}

type Handler struct {
	store    Store
	positive map[string]bool
	negative map[string]bool
}

// New builds the handler. Empty symbol sets fall back to the classic
// "+1" / "-1" pair.
func New(s Store, positive, negative []string) *Handler {
	if len(positive) == 0 {
		positive = []string{"+1"}
	}
	if len(negative) == 0 {
		negative = []string{"-1"}
	}

	handler := &Handler{
		store:    s,
		positive: make(map[string]bool),
		negative: make(map[string]bool),
	}
	for _, symbol := range positive {
		handler.positive[symbol] = true
	}
	for _, symbol := range negative {
		handler.negative[symbol] = true
	}
	return handler
}

func (h *Handler) ShouldHandle(event chat.Event) bool {
	if event.Type != chat.TypeReactionAdded && event.Type != chat.TypeReactionRemoved {
		return false
	}
	return event.Item != nil && event.Item.Type == chat.TypeMessage
}

// Handle applies the reaction to the stored counter. The reacted-to
// reference is tried as a question thread first, then as an answer message.
// There is no per-user dedupe on this path; the chat service emits one
// added event per add and pairs removals with prior adds.
func (h *Handler) Handle(event chat.Event) error {
	delta, recognized := h.polarity(event)
	if !recognized {
		return nil
	}

	ref := event.Item.Ref
	err := h.store.IncrementQuestionVotes(ref, delta)
	if errors.Is(err, store.ErrNotFound) {
		err = h.store.IncrementAnswerVotes(ref, delta)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reaction %q on %q matches no question or answer", event.Reaction, ref)
		}
	}
	return err
}

// polarity maps the reaction symbol to a counter delta. Removing a
// reaction inverts it, so add-then-remove nets to zero.
func (h *Handler) polarity(event chat.Event) (int, bool) {
	var delta int
	switch {
	case h.positive[event.Reaction]:
		delta = 1
	case h.negative[event.Reaction]:
		delta = -1
	default:
		return 0, false
	}

	if event.Type == chat.TypeReactionRemoved {
		delta = -delta
	}
	return delta, true
}
