package domain

import "errors"

var (
	// ErrCaseNotFound indicates the case document could not be loaded.
	ErrCaseNotFound = errors.New("case not found")
	// ErrInvalidCase is returned when a generated case violates the
	// one-correct-diagnosis / at-least-one-MCQ contract. Retryable.
	ErrInvalidCase = errors.New("generated case is invalid")
	// ErrGenerationFailure covers malformed or failed language-model
	// responses during case/hint/roleplay generation. Retryable.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrBudgetExhausted is returned when no hints remain for the day.
	// An expected terminal state, not a fault.
	ErrBudgetExhausted = errors.New("hint budget exhausted")
	// ErrDiagnosisNotFound indicates a submitted diagnosis ID is invalid.
	ErrDiagnosisNotFound = errors.New("diagnosis not found")
	// ErrProfileNotFound is returned when a user record does not exist.
	ErrProfileNotFound = errors.New("profile not found")
)
