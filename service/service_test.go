package service

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wirehall/quorum/store"
)

type fakeNotifier struct {
	messages []string
	fail     bool
}

func (n *fakeNotifier) ResolveUserID(email string) (string, error) {
	if n.fail {
		return "", errors.New("lookup failed")
	}
	return "U" + email, nil
}

func (n *fakeNotifier) PostDirectMessage(chatUserID, text string) error {
	if n.fail {
		return errors.New("post failed")
	}
	n.messages = append(n.messages, chatUserID)
	return nil
}

type harness struct {
	store     *store.Store
	questions *Questions
	answers   *Answers
	notifier  *fakeNotifier
	asker     store.User
	helper    store.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	s := store.New(db)
	if err := s.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	notifier := &fakeNotifier{}
	asker, _ := s.EnsureUser("asker@example.com", "Asker", "")
	helper, _ := s.EnsureUser("helper@example.com", "Helper", "")

	return &harness{
		store:     s,
		questions: NewQuestions(s),
		answers:   NewAnswers(s, notifier, "http://kb.local"),
		notifier:  notifier,
		asker:     asker,
		helper:    helper,
	}
}

func (h *harness) question(t *testing.T) store.Question {
	t.Helper()
	question := store.Question{UserID: h.asker.ID, Title: "t", Body: "b", Bounty: 50}
	if err := h.questions.Create(&question); err != nil {
		t.Fatalf("create question: %v", err)
	}
	return question
}

func (h *harness) answer(t *testing.T, questionID int64) store.Answer {
	t.Helper()
	answer, err := h.answers.Create(h.helper.ID, questionID, "an answer", nil)
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}
	return answer
}

func TestAcceptByQuestionOwner(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)
	answer := h.answer(t, question.ID)

	if err := h.answers.Accept(h.asker.ID, answer.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	storedAnswer, _ := h.store.AnswerByID(answer.ID)
	storedQuestion, _ := h.store.QuestionByID(question.ID)
	if !storedAnswer.Accepted {
		t.Fatal("answer flag not set")
	}
	if !storedQuestion.AnswerAccepted {
		t.Fatal("question flag not set")
	}
}

func TestAcceptByAnswerOwnerIsPolicyViolation(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)
	answer := h.answer(t, question.ID)

	err := h.answers.Accept(h.helper.ID, answer.ID)
	if !errors.Is(err, ErrAcceptNotQuestionOwner) {
		t.Fatalf("expected ErrAcceptNotQuestionOwner, got %v", err)
	}

	storedAnswer, _ := h.store.AnswerByID(answer.ID)
	storedQuestion, _ := h.store.QuestionByID(question.ID)
	if storedAnswer.Accepted || storedQuestion.AnswerAccepted {
		t.Fatal("flags changed after a rejected accept")
	}
}

func TestAcceptUnknownAnswer(t *testing.T) {
	h := newHarness(t)

	if err := h.answers.Accept(h.asker.ID, 404); !errors.Is(err, ErrAnswerNotFound) {
		t.Fatalf("expected ErrAnswerNotFound, got %v", err)
	}
}

func TestQuestionVoteToggle(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)

	if err := h.questions.Vote(h.helper.ID, question.ID, 1); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	total, _ := h.questions.VoteTotal(question.ID)
	if total != 1 {
		t.Fatalf("expected total 1, got %d", total)
	}

	// same-direction repeat is rejected, the row stays
	if err := h.questions.Vote(h.helper.ID, question.ID, 1); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("expected ErrInvalidVote, got %v", err)
	}

	// opposite vote removes the row, netting to zero
	if err := h.questions.Vote(h.helper.ID, question.ID, -1); err != nil {
		t.Fatalf("downvote toggle: %v", err)
	}
	total, _ = h.questions.VoteTotal(question.ID)
	if total != 0 {
		t.Fatalf("expected total 0 after toggle, got %d", total)
	}
}

func TestVotingOwnQuestionIsInvalid(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)

	if err := h.questions.Vote(h.asker.ID, question.ID, 1); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("expected ErrInvalidVote, got %v", err)
	}
}

func TestVoteValueMustBeUnit(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)

	if err := h.questions.Vote(h.helper.ID, question.ID, 2); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("expected ErrInvalidVote for value 2, got %v", err)
	}
}

func TestAnswerVoteToggle(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)
	answer := h.answer(t, question.ID)

	if err := h.answers.Vote(h.asker.ID, answer.ID, -1); err != nil {
		t.Fatalf("downvote: %v", err)
	}
	total, _ := h.answers.VoteTotal(answer.ID)
	if total != -1 {
		t.Fatalf("expected total -1, got %d", total)
	}

	if err := h.answers.Vote(h.helper.ID, answer.ID, 1); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("expected own-answer vote to be invalid, got %v", err)
	}
}

func TestVotesFromTwoUsersAccumulate(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)
	third, _ := h.store.EnsureUser("third@example.com", "", "")

	if err := h.questions.Vote(h.helper.ID, question.ID, 1); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := h.questions.Vote(third.ID, question.ID, 1); err != nil {
		t.Fatalf("vote: %v", err)
	}

	total, _ := h.questions.VoteTotal(question.ID)
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}
}

func TestUpdateQuestionOwnership(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)

	if err := h.questions.Update(h.helper.ID, question.ID, "new", "new"); !errors.Is(err, ErrNotOwnerOfQuestion) {
		t.Fatalf("expected ErrNotOwnerOfQuestion, got %v", err)
	}
	if err := h.questions.Update(h.asker.ID, question.ID, "new title", "new body"); err != nil {
		t.Fatalf("owner update: %v", err)
	}

	stored, _ := h.store.QuestionByID(question.ID)
	if stored.Title != "new title" || stored.Body != "new body" {
		t.Fatalf("update not applied: %+v", stored)
	}
}

func TestDeleteAnswerOwnership(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)
	answer := h.answer(t, question.ID)

	if err := h.answers.Delete(h.asker.ID, answer.ID); !errors.Is(err, ErrNotOwnerOfAnswer) {
		t.Fatalf("expected ErrNotOwnerOfAnswer, got %v", err)
	}
	if err := h.answers.Delete(h.helper.ID, answer.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := h.answers.Get(answer.ID); !errors.Is(err, ErrAnswerNotFound) {
		t.Fatalf("answer still present: %v", err)
	}
}

func TestAnswerOnUnknownQuestion(t *testing.T) {
	h := newHarness(t)

	if _, err := h.answers.Create(h.helper.ID, 404, "hi", nil); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestOwnerIsNotifiedOfNewAnswer(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)

	h.answer(t, question.ID)
	if len(h.notifier.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(h.notifier.messages))
	}
	if h.notifier.messages[0] != "Uasker@example.com" {
		t.Fatalf("notified the wrong user: %q", h.notifier.messages[0])
	}
}

func TestSelfAnswerIsNotNotified(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)

	if _, err := h.answers.Create(h.asker.ID, question.ID, "answering myself", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(h.notifier.messages) != 0 {
		t.Fatalf("owner notified about their own answer: %v", h.notifier.messages)
	}
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	h := newHarness(t)
	question := h.question(t)
	h.notifier.fail = true

	if _, err := h.answers.Create(h.helper.ID, question.ID, "still works", nil); err != nil {
		t.Fatalf("create should survive a notification failure: %v", err)
	}
}
