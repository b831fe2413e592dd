package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint
	// or races a concurrent write.
	ErrConflict = errors.New("conflict")

	// ErrInUse is returned when a record cannot be removed because other
	// records still depend on it.
	ErrInUse = errors.New("in use")

	// ErrReferenceNotFound is returned when a write points at a record that
	// does not exist.
	ErrReferenceNotFound = errors.New("referenced record not found")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translate maps driver errors onto the package sentinels. onForeignKey is
// the sentinel used for foreign key violations, which mean different things
// on insert and on delete.
func translate(err error, onForeignKey error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case pqForeignKeyViolation:
			if onForeignKey != nil {
				return fmt.Errorf("%w: %s", onForeignKey, pqErr.Constraint)
			}
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
