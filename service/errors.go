package service

import "net/http"

// Error is a rejected operation with a stable, machine-readable code. The
// web layer maps Status straight onto the response.
type Error struct {
	Status int
	Code   string
}

func (e *Error) Error() string {
	return e.Code
}

var (
	ErrQuestionNotFound = &Error{Status: http.StatusNotFound, Code: "question.not.found"}
	ErrAnswerNotFound   = &Error{Status: http.StatusNotFound, Code: "answer.not.found"}

	// Accepting is the asker's call. This is a policy violation, kept
	// distinct from the generic ownership errors below.
	ErrAcceptNotQuestionOwner = &Error{Status: http.StatusBadRequest, Code: "not.owner.of.question"}

	ErrNotOwnerOfQuestion = &Error{Status: http.StatusForbidden, Code: "not.owner.of.question"}
	ErrNotOwnerOfAnswer   = &Error{Status: http.StatusForbidden, Code: "not.owner.of.answer"}

	ErrInvalidVote = &Error{Status: http.StatusBadRequest, Code: "invalid.vote"}
)
