// Package threads bridges chat threads into questions and answers: the
// first reply in an unseen thread creates a question from the thread's
// root message, and every reply (that one included) is recorded as an
// answer.
package threads

import (
	"errors"
	"fmt"

	"github.com/wirehall/quorum/chat"
	"github.com/wirehall/quorum/logger"
	"github.com/wirehall/quorum/service"
	"github.com/wirehall/quorum/store"
)

type Questions interface {
	GetByThreadRef(ref string) (store.Question, error)
	Create(question *store.Question) error
}

type Answers interface {
	Create(userID, questionID int64, body string, messageRef *string) (store.Answer, error)
}

type Users interface {
	EnsureUser(email, name, picture string) (store.User, error)
}

// Gateway is the slice of the chat client this handler calls back into.
type Gateway interface {
	FetchRootMessage(channel, threadRef string) (chat.Message, error)
	ResolveUserEmail(chatUserID string) (string, error)
	PostReply(channel, text, threadRef string) error
}

type Handler struct {
	questions Questions
	answers   Answers
	users     Users
	gateway   Gateway
	bounty    int
	baseURL   string
}

func New(questions Questions, answers Answers, users Users, gateway Gateway, bounty int, baseURL string) *Handler {
	return &Handler{
		questions: questions,
		answers:   answers,
		users:     users,
		gateway:   gateway,
		bounty:    bounty,
		baseURL:   baseURL,
	}
}

// ShouldHandle matches plain thread replies. Edits carry a nested message
// payload and bot echoes carry a bot id; both are skipped so the bridge
// does not answer itself.
func (h *Handler) ShouldHandle(event chat.Event) bool {
	return event.Type == chat.TypeMessage &&
		event.ThreadRef != "" &&
		event.SubMessage == nil &&
		event.BotID == ""
}

func (h *Handler) Handle(event chat.Event) error {
	question, err := h.questions.GetByThreadRef(event.ThreadRef)
	if errors.Is(err, service.ErrQuestionNotFound) {
		question, err = h.createQuestion(event)
	}
	if err != nil {
		return err
	}

	return h.recordAnswer(event, question)
}

// createQuestion turns the thread's root message into a question and posts
// a confirmation reply into the thread. The thread reference is unique in
// storage, so a duplicate delivery racing this create loses cleanly and
// falls back to the winner's row.
func (h *Handler) createQuestion(event chat.Event) (store.Question, error) {
	root, err := h.gateway.FetchRootMessage(event.Channel, event.ThreadRef)
	if err != nil {
		return store.Question{}, fmt.Errorf("fetch thread root %q: %w", event.ThreadRef, err)
	}

	author, err := h.resolveUser(root.User)
	if err != nil {
		return store.Question{}, err
	}

	threadRef := event.ThreadRef
	question := store.Question{
		UserID:    author.ID,
		Title:     root.Text,
		Body:      root.Text,
		Bounty:    h.bounty,
		ThreadRef: &threadRef,
	}
	err = h.questions.Create(&question)
	if store.IsDuplicate(err) {
		logger.Debug().Printf("Thread %s was already bridged, reusing its question", event.ThreadRef)
		return h.questions.GetByThreadRef(event.ThreadRef)
	}
	if err != nil {
		return store.Question{}, err
	}

	confirmation := fmt.Sprintf("This looks like an interesting conversation, I have saved it as %s/question/%d", h.baseURL, question.ID)
	if err = h.gateway.PostReply(event.Channel, confirmation, event.ThreadRef); err != nil {
		// the question exists either way, don't fail the event over this
		logger.Err().Printf("Could not post confirmation to thread %s: %s", event.ThreadRef, err.Error())
	}

	return question, nil
}

// recordAnswer stores the triggering message as an answer. A re-delivered
// message hits the unique message reference and is dropped as already
// recorded.
func (h *Handler) recordAnswer(event chat.Event, question store.Question) error {
	author, err := h.resolveUser(event.User)
	if err != nil {
		return err
	}

	messageRef := event.Ref
	_, err = h.answers.Create(author.ID, question.ID, event.Text, &messageRef)
	if store.IsDuplicate(err) {
		logger.Debug().Printf("Message %s already recorded as an answer", event.Ref)
		return nil
	}
	return err
}

func (h *Handler) resolveUser(chatUserID string) (store.User, error) {
	email, err := h.gateway.ResolveUserEmail(chatUserID)
	if err != nil {
		return store.User{}, fmt.Errorf("resolve chat user %q: %w", chatUserID, err)
	}

	user, err := h.users.EnsureUser(email, "", "")
	if err != nil {
		return store.User{}, fmt.Errorf("provision user %q: %w", email, err)
	}
	return user, nil
}
