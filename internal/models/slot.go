package models

import "time"

// Slot is a concrete, dated, bookable time window for one coach.
// Weekday is derived from Date when the slot is built and must stay
// consistent with it. Status available implies an empty PlayerID.
type Slot struct {
	ID        int64        `json:"id"`
	CoachID   int64        `json:"coach_id"`
	BranchID  int64        `json:"branch_id"`
	Date      time.Time    `json:"date"`
	Weekday   time.Weekday `json:"weekday"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	Status    string       `json:"status"` // available, pending, booked, cancelled
	PlayerID  string       `json:"player_id,omitempty"`
	Court     string       `json:"court,omitempty"`
	Capacity  int64        `json:"capacity"`
	Price     float64      `json:"price"`
	Reference string       `json:"reference,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Version   int64        `json:"version"`
}

// Overlaps reports whether two half-open [start, end) windows intersect.
// Back-to-back slots (a.end == b.start) do not overlap.
func (s *Slot) Overlaps(startTime, endTime string) bool {
	return s.StartTime < endTime && startTime < s.EndTime
}

// Blocks reports whether the slot counts against availability.
func (s *Slot) Blocks() bool {
	return s.Status == SlotStatusPending || s.Status == SlotStatusBooked
}

// BookingRequest is the ephemeral value consumed by the booking path.
// It is never persisted; its effect lands on the Slot it claims or creates.
type BookingRequest struct {
	CoachID     int64  `json:"coach_id" validate:"required,gt=0"`
	BranchID    int64  `json:"branch_id" validate:"required,gt=0"`
	Court       string `json:"court_id" validate:"omitempty,max=64"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04"`
	BookingType string `json:"booking_type" validate:"omitempty,oneof=private group assessment"`
	PlayerID    string `json:"-"`
}
