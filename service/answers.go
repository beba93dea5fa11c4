package service

import (
	"errors"
	"fmt"

	"github.com/wirehall/quorum/logger"
	"github.com/wirehall/quorum/store"
)

// Notifier is the slice of the chat gateway used to tell a question owner
// their question got an answer.
type Notifier interface {
	ResolveUserID(email string) (string, error)
	PostDirectMessage(chatUserID, text string) error
}

// Answers is the request surface for answer mutations, including the
// accept transaction.
type Answers struct {
	store    *store.Store
	notifier Notifier
	baseURL  string
}

// NewAnswers builds the answer surface. notifier may be nil, in which case
// owner notifications are skipped.
func NewAnswers(s *store.Store, notifier Notifier, baseURL string) *Answers {
	return &Answers{store: s, notifier: notifier, baseURL: baseURL}
}

// Create attaches an answer to a question and notifies the question owner
// unless they answered themselves. Notification failures never fail the
// create.
func (a *Answers) Create(userID, questionID int64, body string, messageRef *string) (store.Answer, error) {
	question, err := a.store.QuestionByID(questionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Answer{}, ErrQuestionNotFound
	}
	if err != nil {
		return store.Answer{}, err
	}

	answer := store.Answer{
		QuestionID: questionID,
		UserID:     userID,
		Body:       body,
		MessageRef: messageRef,
	}
	if err := a.store.CreateAnswer(&answer); err != nil {
		return store.Answer{}, err
	}

	if a.notifier != nil && question.UserID != userID {
		a.notifyOwner(question, answer)
	}
	return answer, nil
}

func (a *Answers) notifyOwner(question store.Question, answer store.Answer) {
	owner, err := a.store.UserByID(question.UserID)
	if err != nil {
		logger.Err().Printf("Could not notify question owner %d: %s", question.UserID, err.Error())
		return
	}
	chatUserID, err := a.notifier.ResolveUserID(owner.Email)
	if err != nil {
		logger.Err().Printf("Could not notify question owner %d: %s", question.UserID, err.Error())
		return
	}

	text := fmt.Sprintf("Your question *%s* got a new answer:\n%s\nHead over to %s/question/%d#answer_%d to accept it",
		question.Title, answer.Body, a.baseURL, question.ID, answer.ID)
	if err := a.notifier.PostDirectMessage(chatUserID, text); err != nil {
		logger.Err().Printf("Could not notify question owner %d: %s", question.UserID, err.Error())
	}
}

func (a *Answers) Get(answerID int64) (store.Answer, error) {
	answer, err := a.store.AnswerByID(answerID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Answer{}, ErrAnswerNotFound
	}
	return answer, err
}

func (a *Answers) Update(userID, answerID int64, body string) error {
	answer, err := a.Get(answerID)
	if err != nil {
		return err
	}
	if answer.UserID != userID {
		return ErrNotOwnerOfAnswer
	}
	return a.store.UpdateAnswer(answerID, body)
}

func (a *Answers) Delete(userID, answerID int64) error {
	answer, err := a.Get(answerID)
	if err != nil {
		return err
	}
	if answer.UserID != userID {
		return ErrNotOwnerOfAnswer
	}
	return a.store.DeleteAnswer(answerID)
}

// Vote records a ledger vote with the same toggle semantics as question
// votes.
func (a *Answers) Vote(userID, answerID int64, value int) error {
	if value != 1 && value != -1 {
		return ErrInvalidVote
	}

	answer, err := a.Get(answerID)
	if err != nil {
		return err
	}
	if answer.UserID == userID {
		return ErrInvalidVote
	}

	existing, err := a.store.AnswerVoteFor(userID, answerID)
	if errors.Is(err, store.ErrNotFound) {
		return a.store.CreateAnswerVote(&store.AnswerVote{
			UserID:   userID,
			AnswerID: answerID,
			Value:    value,
		})
	}
	if err != nil {
		return err
	}

	if existing.Value+value == 0 {
		return a.store.DeleteAnswerVote(userID, answerID)
	}
	return ErrInvalidVote
}

func (a *Answers) VoteTotal(answerID int64) (int, error) {
	return a.store.AnswerVoteTotal(answerID)
}

// Accept marks an answer as the accepted one. Only the owner of the parent
// question may accept; both the answer flag and the question flag change in
// one transaction.
func (a *Answers) Accept(userID, answerID int64) error {
	answer, err := a.Get(answerID)
	if err != nil {
		return err
	}

	question, err := a.store.QuestionByID(answer.QuestionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrQuestionNotFound
	}
	if err != nil {
		return err
	}
	if question.UserID != userID {
		return ErrAcceptNotQuestionOwner
	}

	return a.store.AcceptAnswerAtomic(answer.ID, question.ID)
}
