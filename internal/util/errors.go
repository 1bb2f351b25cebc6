package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPermissionDenied   = errors.New("permission denied")

	ErrLessonNotFound      = errors.New("lesson not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrSessionNotFound     = errors.New("quiz session not found")
	ErrSessionNotActive    = errors.New("quiz session is not active")
	ErrSessionNotCompleted = errors.New("quiz session is not completed")
	ErrQuestionMismatch    = errors.New("answer does not match the outstanding question")
	ErrInvalidOption       = errors.New("selected option out of range")
	ErrInvalidScore        = errors.New("score must be a number between 1 and 10")
)
