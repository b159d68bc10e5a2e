package models

import "time"

// ScheduleWindow is one recurring window projected onto a concrete date.
type ScheduleWindow struct {
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	SessionMinutes int64  `json:"session_minutes"`
	IsAvailable    bool   `json:"is_available"`
}

// DayAvailability lists a coach's open slots for a date together with the
// schedule windows and the blocking (pending or booked) slots, so clients
// can also render occupied time.
type DayAvailability struct {
	CoachID   int64            `json:"coach_id"`
	Date      string           `json:"date"`
	Weekday   time.Weekday     `json:"weekday"`
	Windows   []ScheduleWindow `json:"windows"`
	Open      []Slot           `json:"open_slots"`
	Blocking  []Slot           `json:"blocking_slots"`
	FetchedAt time.Time        `json:"fetched_at"`
}
