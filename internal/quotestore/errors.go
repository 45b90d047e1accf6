package quotestore

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
)

// classify wraps constraint failures reported by either driver with
// ErrConstraintViolation. Other errors are returned wrapped with op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConstraintViolation) {
		return err
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 23 is integrity_constraint_violation.
		return pqErr.Code.Class() == "23"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}

	return false
}
