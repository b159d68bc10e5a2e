package models

import (
	"fmt"
	"strings"
	"time"
)

// CoachSchedule is a recurring weekly availability rule for one coach.
// StartTime and EndTime use ClockFormat; the window is half-open [start, end).
type CoachSchedule struct {
	ID             int64        `json:"id"`
	CoachID        int64        `json:"coach_id"`
	Weekday        time.Weekday `json:"weekday"`
	StartTime      string       `json:"start_time"`
	EndTime        string       `json:"end_time"`
	SessionMinutes int64        `json:"session_minutes"`
	IsAvailable    bool         `json:"is_available"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Validate checks the rule and rewrites both times in canonical
// zero-padded form, since window checks compare them lexically.
func (s *CoachSchedule) Validate() error {
	if s.CoachID == 0 {
		return fmt.Errorf("schedule has no coach id")
	}
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return fmt.Errorf("invalid weekday %d", s.Weekday)
	}
	startMin, err := ClockMinutes(s.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	endMin, err := ClockMinutes(s.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end time %q: %w", s.EndTime, err)
	}
	if startMin >= endMin {
		return fmt.Errorf("start time %s must be before end time %s", s.StartTime, s.EndTime)
	}
	if s.SessionMinutes <= 0 {
		return fmt.Errorf("session duration must be positive, got %d", s.SessionMinutes)
	}
	s.StartTime = MinutesClock(startMin)
	s.EndTime = MinutesClock(endMin)
	return nil
}

// WindowMinutes returns the window length in minutes. Validate first.
func (s *CoachSchedule) WindowMinutes() int64 {
	startMin, err := ClockMinutes(s.StartTime)
	if err != nil {
		return 0
	}
	endMin, err := ClockMinutes(s.EndTime)
	if err != nil {
		return 0
	}
	return int64(endMin - startMin)
}

// ClockMinutes parses an HH:MM value into minutes since midnight.
func ClockMinutes(clock string) (int, error) {
	t, err := time.Parse(ClockFormat, clock)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// MinutesClock is the inverse of ClockMinutes.
func MinutesClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock re-renders an HH:MM value zero-padded. time.Parse
// принимает "9:00", а строковые сравнения требуют "09:00".
func NormalizeClock(clock string) (string, error) {
	min, err := ClockMinutes(clock)
	if err != nil {
		return "", err
	}
	return MinutesClock(min), nil
}

// ParseWeekday accepts full english weekday names, case-insensitive.
func ParseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("unknown weekday: %s", name)
}
