// Package state stores the per-user conversation context between messages.
package state

import (
	"context"
	"time"
)

// Step is the explicit tag of the booking dialog state machine.
type Step string

const (
	StepIdle        Step = "idle"
	StepAskUsername Step = "ask_username"
	StepAskDay      Step = "ask_day"
	StepAskTime     Step = "ask_time"
)

// Session is the conversation context carried across messages while the user
// is inside the booking flow.
type Session struct {
	UserID    int64     `json:"user_id"`
	Step      Step      `json:"step"`
	Username  string    `json:"username,omitempty"`
	Day       string    `json:"day,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists sessions keyed by telegram user id. Get returns
// (nil, nil) when there is no session: an evicted or expired context is a
// normal state the dialog must recover from, not an error.
type Repository interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Set(ctx context.Context, session *Session) error
	Clear(ctx context.Context, userID int64) error
}
