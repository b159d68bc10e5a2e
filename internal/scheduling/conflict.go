package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// ErrOutsideSchedule - запрошенное время не попадает в рабочее окно тренера.
var ErrOutsideSchedule = errors.New("coach is not available at the requested time")

// ConflictError names the existing slot that blocks a booking request.
type ConflictError struct {
	Slot models.Slot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time conflicts with %s slot %d (%s %s-%s)",
		e.Slot.Status, e.Slot.ID, e.Slot.Date.Format(models.DateFormat), e.Slot.StartTime, e.Slot.EndTime)
}

// Checker decides whether a booking request may proceed. It is advisory
// only: the conditional update in the storage layer is the authority, this
// check exists to fail fast with a precise error. No side effects.
type Checker struct {
	repo domain.Repository
}

func NewChecker(repo domain.Repository) *Checker {
	return &Checker{repo: repo}
}

// Check validates that [startTime, endTime) lies inside an available
// schedule window for the coach on that date and overlaps no pending or
// booked slot. Touching endpoints do not conflict.
func (c *Checker) Check(ctx context.Context, coachID int64, date time.Time, startTime, endTime string) error {
	startMin, err := models.ClockMinutes(startTime)
	if err != nil {
		return fmt.Errorf("invalid start time %q: %w", startTime, err)
	}
	endMin, err := models.ClockMinutes(endTime)
	if err != nil {
		return fmt.Errorf("invalid end time %q: %w", endTime, err)
	}
	if startMin >= endMin {
		return fmt.Errorf("start time %s must be before end time %s", startTime, endTime)
	}

	inWindow, err := c.insideSchedule(ctx, coachID, date.Weekday(), startTime, endTime)
	if err != nil {
		return err
	}
	if !inWindow {
		return ErrOutsideSchedule
	}

	blocking, err := c.repo.GetBlockingSlots(ctx, coachID, date)
	if err != nil {
		return fmt.Errorf("failed to load blocking slots: %w", err)
	}
	for i := range blocking {
		if blocking[i].Overlaps(startTime, endTime) {
			return &ConflictError{Slot: blocking[i]}
		}
	}
	return nil
}

func (c *Checker) insideSchedule(ctx context.Context, coachID int64, weekday time.Weekday, startTime, endTime string) (bool, error) {
	schedules, err := c.repo.GetSchedulesForDay(ctx, coachID, weekday)
	if err != nil {
		return false, fmt.Errorf("failed to load schedules: %w", err)
	}
	for _, sched := range schedules {
		if !sched.IsAvailable {
			continue
		}
		// окно запроса целиком внутри окна расписания
		if sched.StartTime <= startTime && endTime <= sched.EndTime {
			return true, nil
		}
	}
	return false, nil
}
