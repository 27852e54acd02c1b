package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Ban is a blocklist entry.
type Ban struct {
	UserID   string
	Reason   string
	BannedBy string
	BannedAt time.Time
}

// IsUserBanned checks if a user is in the banned_users table.
func (s *Store) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	ban, err := s.GetBan(ctx, userID)
	if err != nil {
		return false, err
	}
	return ban != nil, nil
}

// GetBan returns the blocklist entry of a user, or nil when the user is not banned.
func (s *Store) GetBan(ctx context.Context, userID string) (*Ban, error) {
	var (
		ban       Ban
		reason    sql.NullString
		bannedBy  sql.NullString
		timestamp int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, reason, banned_by, timestamp FROM banned_users WHERE user_id = ?", userID,
	).Scan(&ban.UserID, &reason, &bannedBy, &timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not banned
		}
		return nil, err
	}

	ban.Reason = reason.String
	ban.BannedBy = bannedBy.String
	ban.BannedAt = time.Unix(timestamp, 0)
	return &ban, nil
}

// BanUser adds or replaces a user in the banned_users table.
func (s *Store) BanUser(ctx context.Context, userID, reason, bannedBy string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO banned_users(user_id, reason, banned_by, timestamp) VALUES(?, ?, ?, ?)",
		userID, reason, bannedBy, time.Now().Unix(),
	)
	return err
}

// UnbanUser removes a user from the banned_users table. It reports whether an entry existed.
func (s *Store) UnbanUser(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM banned_users WHERE user_id = ?", userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
