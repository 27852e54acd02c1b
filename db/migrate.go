package db

import "fmt"

// createTables creates the necessary tables if they don't exist.
func (s *Store) createTables() error {
	createBannedUsersTableSQL := `
	CREATE TABLE IF NOT EXISTS banned_users (
		user_id TEXT PRIMARY KEY,
		reason TEXT,
		banned_by TEXT,
		timestamp INTEGER NOT NULL
	);`

	if _, err := s.db.Exec(createBannedUsersTableSQL); err != nil {
		return fmt.Errorf("failed to create banned_users table: %w", err)
	}

	// 'id_counter' table for sequential submission numbers
	createIDCounterTableSQL := `
	CREATE TABLE IF NOT EXISTS id_counter (
		counter_name TEXT PRIMARY KEY,
		current_value INTEGER NOT NULL DEFAULT 0
	);`

	if _, err := s.db.Exec(createIDCounterTableSQL); err != nil {
		return fmt.Errorf("failed to create id_counter table: %w", err)
	}

	_, err := s.db.Exec("INSERT OR IGNORE INTO id_counter(counter_name, current_value) VALUES(?, 0)", submissionCounter)
	if err != nil {
		return fmt.Errorf("failed to initialize submission counter: %w", err)
	}

	return nil
}
