package services

import (
	"errors"
	"fmt"
)

// Sentinel errors; compare with errors.Is.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyCheckedIn    = errors.New("already checked in today")
	ErrPredictionClosed    = errors.New("prediction closed")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrValidation          = errors.New("validation failed")

	ErrPredictionNotFound = errors.New("prediction not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrFeedbackNotFound   = errors.New("feedback not found")
	ErrUsernameTaken      = errors.New("username already exists")
)

// InsufficientBalanceError reports a debit the balance could not cover.
type InsufficientBalanceError struct {
	UserID    uint
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: user %d has %d, needs %d", e.UserID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsClientError reports whether err was caused by the caller rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrPredictionClosed) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUsernameTaken)
}

// IsNotFound reports whether err names a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPredictionNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrFeedbackNotFound)
}
