package postgres

import (
	"database/sql"
	"fmt"

	"github.com/vedaai/veda-backend/repositories"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// requireRow turns a zero-row update or delete into ErrNotFound. Under
// row-level security a row owned by someone else is indistinguishable from
// a missing one.
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// clampPage normalizes limit/offset pagination arguments
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
