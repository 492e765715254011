// Package slots derives the bookable times of a day from the fixed
// half-hour laundry grid.
package slots

import (
	"fmt"
	"time"

	"stiralka/internal/model"
)

// The grid runs 14:00 through 22:30 in half-hour steps, 18 slots total.
const (
	firstHour = 14
	lastHour  = 22
)

// Grid returns every slot label of the day in ascending order.
func Grid() []string {
	var times []string
	for hour := firstHour; hour <= lastHour; hour++ {
		for _, minute := range []int{0, 30} {
			times = append(times, fmt.Sprintf("%02d:%02d", hour, minute))
		}
	}
	return times
}

// AvailableTimes computes the bookable times for a day. When the day is
// today, slots at or before the current time are dropped; booked slots are
// always dropped. The result stays in ascending order.
//
// Lexicographic comparison of the labels is sound: hours never leave the
// 14-22 range, so every label is a zero-padded "HH:MM" on the same day.
func AvailableTimes(day model.Weekday, now time.Time, booked map[string]bool) []string {
	nowLabel := now.Format("15:04")
	sameDay := day == model.WeekdayOf(now)

	var available []string
	for _, t := range Grid() {
		if sameDay && t <= nowLabel {
			continue
		}
		if booked[t] {
			continue
		}
		available = append(available, t)
	}
	return available
}
