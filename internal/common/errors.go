package common

import "errors"

// Business logic errors
var (
	// Case study errors
	ErrCaseStudyNotFound = errors.New("case study not found")

	// Lifecycle errors
	ErrAlreadyDeleted = errors.New("case study is already deleted")
	ErrNotDeleted     = errors.New("case study is not deleted")

	// Versioning errors
	ErrProtectedField = errors.New("field is not editable")

	// Propagation errors
	ErrJobNotFound     = errors.New("propagation job not found")
	ErrJobAlreadyDone  = errors.New("propagation job already finished")
	ErrInvalidSelector = errors.New("invalid selector")
	ErrSettingNotFound = errors.New("generation setting not found")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)
