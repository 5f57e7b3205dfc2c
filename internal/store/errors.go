package store

import (
	"errors"
	"fmt"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/mattn/go-sqlite3"
)

// classify maps SQLite failures onto the apperr taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return apperr.Transient(op, err)
		case sqlite3.ErrConstraint:
			if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return apperr.Conflict(op, err)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
