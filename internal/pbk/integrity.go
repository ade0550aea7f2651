package pbk

import "errors"

// ErrIntegrity is wrapped by IntegrityChecker implementations when a database
// opens but fails its integrity check.
var ErrIntegrity = errors.New("database integrity check failed")

// ErrCancelled is returned when the user declines to continue after a warning.
var ErrCancelled = errors.New("cancelled")

// IntegrityChecker verifies a database file before it is copied or restored.
type IntegrityChecker interface {
	// CheckIntegrity returns nil if the database at path is intact.
	CheckIntegrity(path string) error
}

// Confirmer asks the user whether to continue after a warning.
// A nil Confirmer declines every question.
type Confirmer func(question string) (bool, error)

func (c Confirmer) ask(question string) (bool, error) {
	if c == nil {
		return false, nil
	}
	return c(question)
}
