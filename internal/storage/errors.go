package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Raleighawesome/family-movies/internal/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateFilter = errors.New("filter already exists")
	ErrInvalidData     = errors.New("invalid data")
)

const pgUndefinedTable = "42P01"

// isMissingRelation reports whether err means a table has not been created.
func isMissingRelation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}

// wrapErr classifies a driver error for the service layer.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if isMissingRelation(err) {
		return apperr.MissingSchema(op, err)
	}
	return apperr.Persistence(op, err)
}

func duplicateErr(op, labelKey string) error {
	return apperr.Persistence(op, fmt.Errorf("%w: %s", ErrDuplicateFilter, labelKey))
}
