package db

import (
	"context"
	"fmt"
)

const submissionCounter = "submission_number"

// NextSubmissionNumber increments and returns the public submission number.
func (s *Store) NextSubmissionNumber(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, "SELECT current_value FROM id_counter WHERE counter_name = ?", submissionCounter).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("failed to read submission counter: %w", err)
	}

	next := current + 1
	_, err = tx.ExecContext(ctx, "UPDATE id_counter SET current_value = ? WHERE counter_name = ?", next, submissionCounter)
	if err != nil {
		return 0, fmt.Errorf("failed to update submission counter: %w", err)
	}

	return next, tx.Commit()
}
