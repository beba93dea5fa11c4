package store

import "time"

type User struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;size:190;not null"`
	Name      string
	Picture   string
	CreatedAt time.Time
}

// Question is a knowledge-base question. ThreadRef links it to the chat
// thread it was bridged from and is unique when present, so two deliveries
// for the same new thread cannot both insert.
type Question struct {
	ID             int64 `gorm:"primaryKey"`
	UserID         int64 `gorm:"index;not null"`
	Title          string
	Body           string
	Bounty         int
	ThreadRef      *string `gorm:"uniqueIndex;size:64"`
	Votes          int     `gorm:"not null;default:0"`
	AnswerAccepted bool    `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Answer struct {
	ID         int64 `gorm:"primaryKey"`
	QuestionID int64 `gorm:"index;not null"`
	UserID     int64 `gorm:"index;not null"`
	Body       string
	MessageRef *string `gorm:"uniqueIndex;size:64"`
	Votes      int     `gorm:"not null;default:0"`
	Accepted   bool    `gorm:"not null;default:false"`
	AcceptedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// QuestionVote is the per-user ledger for the conventional vote path.
// At most one row per (user, question).
type QuestionVote struct {
	ID         int64 `gorm:"primaryKey"`
	UserID     int64 `gorm:"uniqueIndex:question_vote_idx;not null"`
	QuestionID int64 `gorm:"uniqueIndex:question_vote_idx;index;not null"`
	Value      int   `gorm:"not null"`
	CreatedAt  time.Time
}

type AnswerVote struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"uniqueIndex:answer_vote_idx;not null"`
	AnswerID  int64 `gorm:"uniqueIndex:answer_vote_idx;index;not null"`
	Value     int   `gorm:"not null"`
	CreatedAt time.Time
}
