// Package booking drives the registration and reservation dialog.
package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stiralka/internal/db"
	"stiralka/internal/metrics"
	"stiralka/internal/model"
	"stiralka/internal/slots"
	"stiralka/internal/state"
)

// Reply is a transport-neutral outbound message. Choices are offered to the
// user as a one-row keyboard; RemoveChoices drops a previously shown one.
type Reply struct {
	Text          string
	Choices       []string
	RemoveChoices bool
}

// Registry is the user-facing slice of the database.
type Registry interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	RegisterUser(ctx context.Context, telegramID int64, username string) error
	IncrementBookingCount(ctx context.Context, username string) error
}

// Schedule is the reservation-facing slice of the database.
type Schedule interface {
	BookedTimes(ctx context.Context, day model.Weekday) (map[string]bool, error)
	CreateBooking(ctx context.Context, b model.Booking) error
	ListWeek(ctx context.Context) ([]model.Booking, error)
}

// Nickname: room number plus three initials, e.g. 777АМР.
var usernameRe = regexp.MustCompile(`^\d{3}[А-Я]{3}$`)

const (
	msgAlreadyRegistered = "Вы уже зарегистрированы с никнеймом: %s"
	msgAskUsername       = "Введите никнейм (номер комнаты и по одной букве из ФИО, например 777АМР):"
	msgBadUsername       = "Неправильный формат. Три цифры и три русские буквы."
	msgUsernameTaken     = "Этот никнейм уже занят. Попробуйте другой."
	msgChooseDay         = "Выберите день недели:"
	msgBadDay            = "Выберите день недели из списка."
	msgChooseTime        = "Выберите время (доступные временные слоты):"
	msgPickTimeFromList  = "Выберите время из списка."
	msgNoSlots           = "Нет доступных временных слотов. Выберите другой день."
	msgNeedStart         = "Для начала задайте имя (/start)"
	msgConfirmed         = "Запись подтверждена!"
	msgSlotTaken         = "Это время уже занято. Выберите другой день."
	msgNotRegistered     = "Вы не зарегистрированы. Запустите /start для регистрации."
	msgQuotaExceeded     = "Вы уже записались на эту неделю. Вы можете записаться снова в понедельник."
	msgNotImplemented    = "Эта функция пока не реализована."
)

// Flow walks a user from registration through day and time selection to a
// committed reservation. All methods are safe for concurrent use across
// users; conflicting bookings are serialized by the schedule store.
type Flow struct {
	registry Registry
	schedule Schedule
	sessions state.Repository
	now      func() time.Time
}

// New creates a booking flow.
func New(registry Registry, schedule Schedule, sessions state.Repository) *Flow {
	return &Flow{
		registry: registry,
		schedule: schedule,
		sessions: sessions,
		now:      time.Now,
	}
}

// Start handles /start: begins registration, or reports the existing
// nickname when the account is already registered.
func (f *Flow) Start(ctx context.Context, userID int64) ([]Reply, error) {
	u, err := f.registry.GetUserByTelegramID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return []Reply{{Text: fmt.Sprintf(msgAlreadyRegistered, u.Username)}}, nil
	}

	err = f.sessions.Set(ctx, &state.Session{UserID: userID, Step: state.StepAskUsername})
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: msgAskUsername}}, nil
}

// SetTime handles /set_time: enters day selection for a registered user who
// has not used up the weekly quota.
func (f *Flow) SetTime(ctx context.Context, userID int64) ([]Reply, error) {
	u, err := f.registry.GetUserByTelegramID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return []Reply{{Text: msgNotRegistered}}, nil
	}
	if u.BookingCount >= 1 {
		return []Reply{{Text: msgQuotaExceeded}}, nil
	}

	err = f.sessions.Set(ctx, &state.Session{
		UserID:   userID,
		Step:     state.StepAskDay,
		Username: u.Username,
	})
	if err != nil {
		return nil, err
	}
	return []Reply{chooseDay()}, nil
}

// Change handles /change. Rebooking is intentionally not implemented.
func (f *Flow) Change() []Reply {
	return []Reply{{Text: msgNotImplemented}}
}

// WeekSchedule handles /schedule: one reply per day in fixed weekday order.
func (f *Flow) WeekSchedule(ctx context.Context) ([]Reply, error) {
	bookings, err := f.schedule.ListWeek(ctx)
	if err != nil {
		return nil, err
	}

	byDay := make(map[model.Weekday][]model.Booking)
	for _, b := range bookings {
		byDay[b.Day] = append(byDay[b.Day], b)
	}

	var replies []Reply
	for day := model.Monday; day <= model.Sunday; day++ {
		entries := byDay[day]
		if len(entries) == 0 {
			replies = append(replies, Reply{Text: fmt.Sprintf("На %s пока нет записей.", day.Label())})
			continue
		}
		lines := make([]string, 0, len(entries))
		for _, b := range entries {
			lines = append(lines, fmt.Sprintf("%s: %s", b.Time, b.Username))
		}
		replies = append(replies, Reply{
			Text: fmt.Sprintf("Расписание на %s:\n%s", day.Label(), strings.Join(lines, "\n")),
		})
	}
	return replies, nil
}

// HandleText processes free text according to the current dialog step.
// With no active session the text is ignored: a dropped context simply
// resumes from idle.
func (f *Flow) HandleText(ctx context.Context, userID int64, text string) ([]Reply, error) {
	sess, err := f.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Step == state.StepIdle {
		return nil, nil
	}

	text = strings.TrimSpace(text)
	switch sess.Step {
	case state.StepAskUsername:
		return f.handleUsername(ctx, sess, text)
	case state.StepAskDay:
		return f.handleDay(ctx, sess, text)
	case state.StepAskTime:
		return f.handleTime(ctx, sess, text)
	default:
		return nil, fmt.Errorf("unknown dialog step: %s", sess.Step)
	}
}

func (f *Flow) handleUsername(ctx context.Context, sess *state.Session, text string) ([]Reply, error) {
	if !usernameRe.MatchString(text) {
		return []Reply{{Text: msgBadUsername}}, nil
	}

	err := f.registry.RegisterUser(ctx, sess.UserID, text)
	switch {
	case errors.Is(err, db.ErrUsernameTaken):
		return []Reply{{Text: msgUsernameTaken}}, nil
	case errors.Is(err, db.ErrAlreadyRegistered):
		// Lost a registration race against ourselves; report what stuck.
		u, lookupErr := f.registry.GetUserByTelegramID(ctx, sess.UserID)
		if lookupErr != nil || u == nil {
			return nil, err
		}
		_ = f.sessions.Clear(ctx, sess.UserID)
		return []Reply{{Text: fmt.Sprintf(msgAlreadyRegistered, u.Username)}}, nil
	case err != nil:
		return nil, err
	}

	metrics.IncRegistration()
	sess.Username = text
	sess.Step = state.StepAskDay
	if err := f.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	return []Reply{chooseDay()}, nil
}

func (f *Flow) handleDay(ctx context.Context, sess *state.Session, text string) ([]Reply, error) {
	if sess.Username == "" {
		_ = f.sessions.Clear(ctx, sess.UserID)
		return []Reply{{Text: msgNeedStart}}, nil
	}

	day, ok := model.ParseWeekday(text)
	if !ok {
		return []Reply{{Text: msgBadDay, Choices: model.WeekdayLabels()}}, nil
	}

	available, err := f.availableTimes(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return []Reply{{Text: msgNoSlots}, chooseDay()}, nil
	}

	sess.Day = day.Label()
	sess.Step = state.StepAskTime
	if err := f.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	return []Reply{{Text: msgChooseTime, Choices: available}}, nil
}

func (f *Flow) handleTime(ctx context.Context, sess *state.Session, text string) ([]Reply, error) {
	if sess.Username == "" {
		_ = f.sessions.Clear(ctx, sess.UserID)
		return []Reply{{Text: msgNeedStart}}, nil
	}

	if strings.Contains(strings.ToLower(text), "назад") {
		return f.backToDay(ctx, sess)
	}

	day, ok := model.ParseWeekday(sess.Day)
	if !ok {
		// Stored day got corrupted or evicted mid-flow; re-ask.
		return f.backToDay(ctx, sess)
	}

	available, err := f.availableTimes(ctx, day)
	if err != nil {
		return nil, err
	}
	if !contains(available, text) {
		return []Reply{{Text: msgPickTimeFromList, Choices: available}}, nil
	}

	err = f.schedule.CreateBooking(ctx, model.Booking{Day: day, Time: text, Username: sess.Username})
	if errors.Is(err, db.ErrSlotTaken) {
		metrics.IncBooking("conflict")
		replies, backErr := f.backToDay(ctx, sess)
		if backErr != nil {
			return nil, backErr
		}
		return append([]Reply{{Text: msgSlotTaken}}, replies...), nil
	}
	if err != nil {
		return nil, err
	}

	if err := f.registry.IncrementBookingCount(ctx, sess.Username); err != nil {
		// The slot is committed; the quota catches up on the next reset.
		zerolog.Ctx(ctx).Error().Err(err).Str("username", sess.Username).Msg("increment booking count failed")
	}

	metrics.IncBooking("confirmed")
	if err := f.sessions.Clear(ctx, sess.UserID); err != nil {
		return nil, err
	}
	return []Reply{{Text: msgConfirmed, RemoveChoices: true}}, nil
}

func (f *Flow) backToDay(ctx context.Context, sess *state.Session) ([]Reply, error) {
	sess.Day = ""
	sess.Step = state.StepAskDay
	if err := f.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	return []Reply{chooseDay()}, nil
}

func (f *Flow) availableTimes(ctx context.Context, day model.Weekday) ([]string, error) {
	booked, err := f.schedule.BookedTimes(ctx, day)
	if err != nil {
		return nil, err
	}
	return slots.AvailableTimes(day, f.now(), booked), nil
}

func chooseDay() Reply {
	return Reply{Text: msgChooseDay, Choices: model.WeekdayLabels()}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
