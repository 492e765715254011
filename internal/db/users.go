package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"stiralka/internal/model"
)

var (
	// ErrAlreadyRegistered is returned when the telegram account already has a nickname.
	ErrAlreadyRegistered = errors.New("user already registered")
	// ErrUsernameTaken is returned when the nickname belongs to another account.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrUnknownUser is returned when no user matches the given nickname.
	ErrUnknownUser = errors.New("unknown user")
)

// RegisterUser binds a nickname to a telegram account. Both the account and
// the nickname must be unused; the check and the insert happen in one
// transaction so concurrent registrations cannot double-bind either key.
func (db *DB) RegisterUser(ctx context.Context, telegramID int64, username string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT username FROM users WHERE telegram_id = ?", telegramID,
	).Scan(&existing)
	switch {
	case err == nil:
		return ErrAlreadyRegistered
	case err != sql.ErrNoRows:
		return fmt.Errorf("lookup registration: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (telegram_id, username, booking_count) VALUES (?, ?, 0)",
		telegramID, username,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			if strings.Contains(sqliteErr.Error(), "users.telegram_id") {
				return ErrAlreadyRegistered
			}
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register: %w", err)
	}
	return nil
}

// GetUserByTelegramID returns the user bound to the account, or nil when the
// account is not registered.
func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var u model.User
	err := db.QueryRowContext(ctx,
		"SELECT telegram_id, username, booking_count FROM users WHERE telegram_id = ?",
		telegramID,
	).Scan(&u.TelegramID, &u.Username, &u.BookingCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// IncrementBookingCount adds one committed booking to the user's weekly count.
func (db *DB) IncrementBookingCount(ctx context.Context, username string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE users SET booking_count = booking_count + 1 WHERE username = ?",
		username,
	)
	if err != nil {
		return fmt.Errorf("increment count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment count: %w", err)
	}
	if affected == 0 {
		return ErrUnknownUser
	}
	return nil
}

// ResetAllCounts zeroes every weekly booking counter. Used by the weekly reset.
func (db *DB) ResetAllCounts(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "UPDATE users SET booking_count = 0")
	if err != nil {
		return fmt.Errorf("reset counts: %w", err)
	}
	return nil
}
