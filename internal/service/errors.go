package service

import (
	"errors"

	"github.com/noah-isme/campuscode-api/pkg/execution"
)

var (
	// ErrProblemNotFound indicates the referenced problem does not exist.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnsupportedLanguage indicates the requested language is not offered.
	ErrUnsupportedLanguage = execution.ErrUnsupportedLanguage
)
