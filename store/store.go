package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Store wraps the persistent tables with the atomic operations the rest of
// the system is built on.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&User{}, &Question{}, &Answer{}, &QuestionVote{}, &AnswerVote{})
}

// IsDuplicate reports whether err was caused by a unique constraint.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) UserByID(id int64) (User, error) {
	var user User
	err := s.db.First(&user, id).Error
	return user, wrapNotFound(err)
}

func (s *Store) UserByEmail(email string) (User, error) {
	var user User
	err := s.db.Where("email = ?", email).First(&user).Error
	return user, wrapNotFound(err)
}

// EnsureUser finds the user for an email, provisioning a row on first
// contact. A concurrent create losing on the email constraint falls back to
// the winner's row.
func (s *Store) EnsureUser(email, name, picture string) (User, error) {
	user, err := s.UserByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	user = User{Email: email, Name: name, Picture: picture}
	err = s.db.Create(&user).Error
	if IsDuplicate(err) {
		return s.UserByEmail(email)
	}
	return user, err
}

func (s *Store) CreateQuestion(question *Question) error {
	return s.db.Create(question).Error
}

func (s *Store) QuestionByID(id int64) (Question, error) {
	var question Question
	err := s.db.First(&question, id).Error
	return question, wrapNotFound(err)
}

func (s *Store) QuestionByThreadRef(ref string) (Question, error) {
	var question Question
	err := s.db.Where("thread_ref = ?", ref).First(&question).Error
	return question, wrapNotFound(err)
}

func (s *Store) UpdateQuestion(id int64, title, body string) error {
	return s.db.Model(&Question{}).Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "body": body}).Error
}

func (s *Store) DeleteQuestion(id int64) error {
	return s.db.Delete(&Question{}, id).Error
}

// IncrementQuestionVotes adjusts the stored chat-path counter. This is a
// plain atomic update; it never touches the vote ledger.
func (s *Store) IncrementQuestionVotes(threadRef string, delta int) error {
	res := s.db.Model(&Question{}).Where("thread_ref = ?", threadRef).
		UpdateColumn("votes", gorm.Expr("votes + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateAnswer(answer *Answer) error {
	return s.db.Create(answer).Error
}

func (s *Store) AnswerByID(id int64) (Answer, error) {
	var answer Answer
	err := s.db.First(&answer, id).Error
	return answer, wrapNotFound(err)
}

func (s *Store) AnswerByMessageRef(ref string) (Answer, error) {
	var answer Answer
	err := s.db.Where("message_ref = ?", ref).First(&answer).Error
	return answer, wrapNotFound(err)
}

func (s *Store) UpdateAnswer(id int64, body string) error {
	return s.db.Model(&Answer{}).Where("id = ?", id).Update("body", body).Error
}

func (s *Store) DeleteAnswer(id int64) error {
	return s.db.Delete(&Answer{}, id).Error
}

func (s *Store) IncrementAnswerVotes(messageRef string, delta int) error {
	res := s.db.Model(&Answer{}).Where("message_ref = ?", messageRef).
		UpdateColumn("votes", gorm.Expr("votes + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) QuestionVoteFor(userID, questionID int64) (QuestionVote, error) {
	var vote QuestionVote
	err := s.db.Where("user_id = ? AND question_id = ?", userID, questionID).First(&vote).Error
	return vote, wrapNotFound(err)
}

func (s *Store) CreateQuestionVote(vote *QuestionVote) error {
	return s.db.Create(vote).Error
}

func (s *Store) DeleteQuestionVote(userID, questionID int64) error {
	return s.db.Where("user_id = ? AND question_id = ?", userID, questionID).
		Delete(&QuestionVote{}).Error
}

// QuestionVoteTotal sums the ledger for a question. Independent of the
// stored chat-path counter, see DESIGN.md.
func (s *Store) QuestionVoteTotal(questionID int64) (int, error) {
	var total int
	err := s.db.Model(&QuestionVote{}).Where("question_id = ?", questionID).
		Select("COALESCE(SUM(value), 0)").Scan(&total).Error
	return total, err
}

func (s *Store) AnswerVoteFor(userID, answerID int64) (AnswerVote, error) {
	var vote AnswerVote
	err := s.db.Where("user_id = ? AND answer_id = ?", userID, answerID).First(&vote).Error
	return vote, wrapNotFound(err)
}

func (s *Store) CreateAnswerVote(vote *AnswerVote) error {
	return s.db.Create(vote).Error
}

func (s *Store) DeleteAnswerVote(userID, answerID int64) error {
	return s.db.Where("user_id = ? AND answer_id = ?", userID, answerID).
		Delete(&AnswerVote{}).Error
}

func (s *Store) AnswerVoteTotal(answerID int64) (int, error) {
	var total int
	err := s.db.Model(&AnswerVote{}).Where("answer_id = ?", answerID).
		Select("COALESCE(SUM(value), 0)").Scan(&total).Error
	return total, err
}

// AcceptAnswerAtomic flips the answer's accepted flag and the parent
// question's answer_accepted flag in one transaction. Both rows change or
// neither does.
func (s *Store) AcceptAnswerAtomic(answerID, questionID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&Answer{}).Where("id = ?", answerID).
			Updates(map[string]interface{}{"accepted": true, "accepted_at": &now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		res = tx.Model(&Question{}).Where("id = ?", questionID).
			Update("answer_accepted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
