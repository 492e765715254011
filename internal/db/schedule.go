package db

import (
	"context"
	"errors"
	"fmt"

	"stiralka/internal/model"
)

// ErrSlotTaken is returned when the (day, time) slot is already booked.
var ErrSlotTaken = errors.New("slot already booked")

// BookedTimes returns the set of occupied times for a day.
func (db *DB) BookedTimes(ctx context.Context, day model.Weekday) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT time FROM schedule WHERE day = ?", int(day),
	)
	if err != nil {
		return nil, fmt.Errorf("booked times: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan time: %w", err)
		}
		booked[t] = true
	}
	return booked, rows.Err()
}

// CreateBooking inserts a reservation. The unique slot index makes the
// check-and-insert atomic: of two concurrent calls for the same (day, time)
// exactly one inserts a row and the other gets ErrSlotTaken.
func (db *DB) CreateBooking(ctx context.Context, b model.Booking) error {
	res, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO schedule (day, time, username) VALUES (?, ?, ?)",
		int(b.Day), b.Time, b.Username,
	)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	if affected == 0 {
		return ErrSlotTaken
	}
	return nil
}

// ListWeek returns every booking of the current week, grouped by day in fixed
// Monday-first order, ascending by time within a day.
func (db *DB) ListWeek(ctx context.Context) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT day, time, username FROM schedule ORDER BY day, time",
	)
	if err != nil {
		return nil, fmt.Errorf("list week: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		var day int
		if err := rows.Scan(&day, &b.Time, &b.Username); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.Day = model.Weekday(day)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ClearSchedule removes every booking. Clearing an empty schedule is a no-op.
func (db *DB) ClearSchedule(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "DELETE FROM schedule")
	if err != nil {
		return fmt.Errorf("clear schedule: %w", err)
	}
	return nil
}

// ResetWeek clears the schedule and zeroes all booking counters in a single
// transaction, so a booking is never left counted but absent (or the reverse)
// relative to an in-flight commit.
func (db *DB) ResetWeek(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM schedule"); err != nil {
		return fmt.Errorf("reset schedule: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET booking_count = 0"); err != nil {
		return fmt.Errorf("reset counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
