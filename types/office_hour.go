package types

import "time"

// Weekdays lists the accepted day names in display order.
var Weekdays = []string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// WeekdayIndex returns the position of day in Weekdays, or -1.
func WeekdayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// OfficeHour is a weekly availability window published by a tutor.
// Records are unique per (TutorUsername, StartTime, EndTime, Timezone).
type OfficeHour struct {
	// ID is a generated string identifier.
	ID string `json:"id" db:"id"`

	// TutorUsername is the owning tutor.
	TutorUsername string `json:"tutor_username" db:"tutor_username"`

	// Days holds weekday names, e.g. "Monday".
	Days []string `json:"days" db:"days"`

	// StartTime and EndTime are wall-clock times formatted as HH:MM.
	StartTime string `json:"start_time" db:"start_time"`
	EndTime   string `json:"end_time" db:"end_time"`

	// Timezone is the IANA zone the times are expressed in.
	Timezone string `json:"timezone" db:"timezone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FirstDayIndex returns the smallest WeekdayIndex among Days, or
// len(Weekdays) when none is recognised.
func (o OfficeHour) FirstDayIndex() int {
	first := len(Weekdays)
	for _, day := range o.Days {
		if idx := WeekdayIndex(day); idx >= 0 && idx < first {
			first = idx
		}
	}
	return first
}
