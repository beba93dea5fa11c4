package service

import (
	"errors"

	"github.com/wirehall/quorum/store"
)

// Questions is the request surface for question mutations, shared by the
// HTTP layer and the chat thread handler.
type Questions struct {
	store *store.Store
}

func NewQuestions(s *store.Store) *Questions {
	return &Questions{store: s}
}

func (q *Questions) Create(question *store.Question) error {
	return q.store.CreateQuestion(question)
}

func (q *Questions) Get(questionID int64) (store.Question, error) {
	question, err := q.store.QuestionByID(questionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Question{}, ErrQuestionNotFound
	}
	return question, err
}

func (q *Questions) GetByThreadRef(ref string) (store.Question, error) {
	question, err := q.store.QuestionByThreadRef(ref)
	if errors.Is(err, store.ErrNotFound) {
		return store.Question{}, ErrQuestionNotFound
	}
	return question, err
}

func (q *Questions) Update(userID, questionID int64, title, body string) error {
	question, err := q.Get(questionID)
	if err != nil {
		return err
	}
	if question.UserID != userID {
		return ErrNotOwnerOfQuestion
	}
	return q.store.UpdateQuestion(questionID, title, body)
}

func (q *Questions) Delete(userID, questionID int64) error {
	question, err := q.Get(questionID)
	if err != nil {
		return err
	}
	if question.UserID != userID {
		return ErrNotOwnerOfQuestion
	}
	return q.store.DeleteQuestion(questionID)
}

// Vote records a ledger vote. A vote on your own question is invalid, an
// opposite vote removes the existing row (net zero), and repeating a live
// vote is rejected.
func (q *Questions) Vote(userID, questionID int64, value int) error {
	if value != 1 && value != -1 {
		return ErrInvalidVote
	}

	question, err := q.Get(questionID)
	if err != nil {
		return err
	}
	if question.UserID == userID {
		return ErrInvalidVote
	}

	existing, err := q.store.QuestionVoteFor(userID, questionID)
	if errors.Is(err, store.ErrNotFound) {
		return q.store.CreateQuestionVote(&store.QuestionVote{
			UserID:     userID,
			QuestionID: questionID,
			Value:      value,
		})
	}
	if err != nil {
		return err
	}

	if existing.Value+value == 0 {
		return q.store.DeleteQuestionVote(userID, questionID)
	}
	return ErrInvalidVote
}

// VoteTotal is the ledger-derived total, not the chat-path counter.
func (q *Questions) VoteTotal(questionID int64) (int, error) {
	return q.store.QuestionVoteTotal(questionID)
}
