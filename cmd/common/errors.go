package common

import (
	"errors"

	"github.com/jonesrussell/north-cloud/categorizer/internal/domain"
)

// Exit codes.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitRetriesExhausted = 2
)

var (
	// ErrLoggerRequired is returned when CommandDeps.Logger is nil
	ErrLoggerRequired = errors.New("logger is required")

	// ErrConfigRequired is returned when CommandDeps.Config is nil
	ErrConfigRequired = errors.New("config is required")
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrRetriesExhausted):
		return ExitRetriesExhausted
	default:
		return ExitError
	}
}
