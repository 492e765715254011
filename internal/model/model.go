// Package model holds the domain types shared across the bot.
package model

import (
	"strings"
	"time"
)

// Weekday is a day of the laundry week, Monday first.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayLabels = [7]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// WeekdayLabels returns the seven labels in fixed Monday-first order.
func WeekdayLabels() []string {
	labels := make([]string, len(weekdayLabels))
	copy(labels, weekdayLabels[:])
	return labels
}

// Label returns the short Russian label for the day.
func (w Weekday) Label() string {
	if w < Monday || w > Sunday {
		return ""
	}
	return weekdayLabels[w]
}

// ParseWeekday converts raw user text into a Weekday. Matching is
// case-insensitive; anything that is not one of the seven labels is rejected.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.TrimSpace(s)
	for i, label := range weekdayLabels {
		if strings.EqualFold(s, label) {
			return Weekday(i), true
		}
	}
	return 0, false
}

// WeekdayOf maps a time.Time onto the Monday-first week.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// User is a registered resident of the laundry room.
type User struct {
	TelegramID   int64
	Username     string
	BookingCount int
}

// Booking is a committed reservation of a single half-hour slot.
type Booking struct {
	Day      Weekday
	Time     string // "HH:MM"
	Username string
}
