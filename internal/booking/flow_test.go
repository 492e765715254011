package booking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stiralka/internal/db"
	"stiralka/internal/model"
	"stiralka/internal/slots"
	"stiralka/internal/state"
)

// 2026-09-06 10:00 is a Sunday morning, well before the grid opens.
var testNow = time.Date(2026, 9, 6, 10, 0, 0, 0, time.UTC)

func newTestFlow(t *testing.T) (*Flow, *db.DB, state.Repository) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sessions := state.NewMemoryRepository(time.Hour)
	f := New(database, database, sessions)
	f.now = func() time.Time { return testNow }
	return f, database, sessions
}

func TestUsernamePattern(t *testing.T) {
	valid := []string{"777АБВ", "001ЯЮЭ", "123АМР"}
	invalid := []string{
		"77АБВ", "7777АБВ", "777АБ", "777АБВГ",
		"777абв", "АБВ777", "777ABC", "777 АБВ", "",
	}

	for _, s := range valid {
		assert.True(t, usernameRe.MatchString(s), "should accept %q", s)
	}
	for _, s := range invalid {
		assert.False(t, usernameRe.MatchString(s), "should reject %q", s)
	}
}

func TestRegistrationFlow(t *testing.T) {
	f, database, _ := newTestFlow(t)
	ctx := context.Background()

	replies, err := f.Start(ctx, 1)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgAskUsername, replies[0].Text)

	// Malformed nickname keeps the user at the same step.
	replies, err = f.HandleText(ctx, 1, "abc")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgBadUsername, replies[0].Text)

	replies, err = f.HandleText(ctx, 1, "777АБВ")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgChooseDay, replies[0].Text)
	assert.Equal(t, model.WeekdayLabels(), replies[0].Choices)

	u, err := database.GetUserByTelegramID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "777АБВ", u.Username)
}

func TestStartWhenAlreadyRegistered(t *testing.T) {
	f, database, sessions := newTestFlow(t)
	ctx := context.Background()

	require.NoError(t, database.RegisterUser(ctx, 1, "777АБВ"))

	replies, err := f.Start(ctx, 1)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "777АБВ")

	// No dialog was started.
	sess, err := sessions.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestUsernameTaken(t *testing.T) {
	f, database, _ := newTestFlow(t)
	ctx := context.Background()

	require.NoError(t, database.RegisterUser(ctx, 2, "777АБВ"))

	_, err := f.Start(ctx, 1)
	require.NoError(t, err)

	replies, err := f.HandleText(ctx, 1, "777АБВ")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgUsernameTaken, replies[0].Text)
}

func TestFullBookingFlow(t *testing.T) {
	f, database, _ := newTestFlow(t)
	ctx := context.Background()

	_, err := f.Start(ctx, 1)
	require.NoError(t, err)
	_, err = f.HandleText(ctx, 1, "777АБВ")
	require.NoError(t, err)

	// Sunday now, Monday requested: the full 18-slot grid is offered.
	replies, err := f.HandleText(ctx, 1, "Пн")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgChooseTime, replies[0].Text)
	assert.Len(t, replies[0].Choices, 18)
	assert.Equal(t, "14:00", replies[0].Choices[0])

	replies, err = f.HandleText(ctx, 1, "14:00")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgConfirmed, replies[0].Text)
	assert.True(t, replies[0].RemoveChoices)

	booked, err := database.BookedTimes(ctx, model.Monday)
	require.NoError(t, err)
	assert.True(t, booked["14:00"])

	u, err := database.GetUserByTelegramID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, u.BookingCount)
}

func TestSetTimeQuota(t *testing.T) {
	f, database, sessions := newTestFlow(t)
	ctx := context.Background()

	replies, err := f.SetTime(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, msgNotRegistered, replies[0].Text)

	require.NoError(t, database.RegisterUser(ctx, 1, "777АБВ"))
	require.NoError(t, database.IncrementBookingCount(ctx, "777АБВ"))

	replies, err = f.SetTime(ctx, 1)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgQuotaExceeded, replies[0].Text)

	sess, err := sessions.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, sess)

	// The weekly reset frees the quota.
	require.NoError(t, database.ResetWeek(ctx))
	replies, err = f.SetTime(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, msgChooseDay, replies[0].Text)
}

func TestBackToDaySelection(t *testing.T) {
	f, _, sessions := newTestFlow(t)
	ctx := context.Background()

	_, err := f.Start(ctx, 1)
	require.NoError(t, err)
	_, err = f.HandleText(ctx, 1, "777АБВ")
	require.NoError(t, err)
	_, err = f.HandleText(ctx, 1, "Пн")
	require.NoError(t, err)

	replies, err := f.HandleText(ctx, 1, "Назад")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgChooseDay, replies[0].Text)

	sess, err := sessions.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, state.StepAskDay, sess.Step)
	assert.Empty(t, sess.Day)
}

func TestInvalidDayAndTimeInputs(t *testing.T) {
	f, _, _ := newTestFlow(t)
	ctx := context.Background()

	_, err := f.Start(ctx, 1)
	require.NoError(t, err)
	_, err = f.HandleText(ctx, 1, "777АБВ")
	require.NoError(t, err)

	replies, err := f.HandleText(ctx, 1, "Monday")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgBadDay, replies[0].Text)

	_, err = f.HandleText(ctx, 1, "Вт")
	require.NoError(t, err)

	replies, err = f.HandleText(ctx, 1, "03:00")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgPickTimeFromList, replies[0].Text)
}

func TestNoSlotsAvailable(t *testing.T) {
	f, database, _ := newTestFlow(t)
	ctx := context.Background()

	for _, tm := range slots.Grid() {
		require.NoError(t, database.CreateBooking(ctx, model.Booking{
			Day: model.Monday, Time: tm, Username: "999ЭЮЯ",
		}))
	}

	_, err := f.Start(ctx, 1)
	require.NoError(t, err)
	_, err = f.HandleText(ctx, 1, "777АБВ")
	require.NoError(t, err)

	replies, err := f.HandleText(ctx, 1, "Пн")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, msgNoSlots, replies[0].Text)
	assert.Equal(t, msgChooseDay, replies[1].Text)
}

func TestSlotConflictAtCommit(t *testing.T) {
	f, database, sessions := newTestFlow(t)
	ctx := context.Background()

	_, err := f.Start(ctx, 1)
	require.NoError(t, err)
	_, err = f.HandleText(ctx, 1, "777АБВ")
	require.NoError(t, err)
	_, err = f.HandleText(ctx, 1, "Пн")
	require.NoError(t, err)

	// Lose the race after the availability list was shown.
	f.schedule = conflictOnce{Schedule: database}

	replies, err := f.HandleText(ctx, 1, "14:00")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, msgSlotTaken, replies[0].Text)
	assert.Equal(t, msgChooseDay, replies[1].Text)

	sess, err := sessions.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, state.StepAskDay, sess.Step)
}

func TestLostContextReprompts(t *testing.T) {
	f, _, sessions := newTestFlow(t)
	ctx := context.Background()

	// A session that survived eviction of its username.
	require.NoError(t, sessions.Set(ctx, &state.Session{UserID: 1, Step: state.StepAskDay}))

	replies, err := f.HandleText(ctx, 1, "Пн")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, msgNeedStart, replies[0].Text)

	sess, err := sessions.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestIdleTextIgnored(t *testing.T) {
	f, _, _ := newTestFlow(t)

	replies, err := f.HandleText(context.Background(), 1, "привет")
	require.NoError(t, err)
	assert.Nil(t, replies)
}

func TestWeekSchedule(t *testing.T) {
	f, database, _ := newTestFlow(t)
	ctx := context.Background()

	require.NoError(t, database.CreateBooking(ctx, model.Booking{
		Day: model.Monday, Time: "14:00", Username: "777АБВ",
	}))
	require.NoError(t, database.CreateBooking(ctx, model.Booking{
		Day: model.Monday, Time: "15:30", Username: "111ГДЕ",
	}))

	replies, err := f.WeekSchedule(ctx)
	require.NoError(t, err)
	require.Len(t, replies, 7)

	assert.Equal(t, "Расписание на Пн:\n14:00: 777АБВ\n15:30: 111ГДЕ", replies[0].Text)
	for i := 1; i < 7; i++ {
		assert.Contains(t, replies[i].Text, "пока нет записей")
	}
}

func TestChangeNotImplemented(t *testing.T) {
	f, _, _ := newTestFlow(t)

	replies := f.Change()
	require.Len(t, replies, 1)
	assert.Equal(t, msgNotImplemented, replies[0].Text)
}

// conflictOnce reports every slot as free but refuses the commit, emulating
// a booking race lost between availability check and insert.
type conflictOnce struct {
	Schedule
}

func (c conflictOnce) CreateBooking(context.Context, model.Booking) error {
	return db.ErrSlotTaken
}

