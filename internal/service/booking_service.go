package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/models"
	"courtbook/internal/scheduling"
)

// BookingService drives the slot lifecycle. The conditional updates in the
// storage layer are the authority for every transition; the upfront conflict
// check only produces precise early errors.
type BookingService struct {
	repo       domain.Repository
	checker    *scheduling.Checker
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	cache      domain.AvailabilityCache
	cfg        config.BookingConfig
	logger     *zerolog.Logger
}

func NewBookingService(repo domain.Repository, checker *scheduling.Checker, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, cache domain.AvailabilityCache, cfg config.BookingConfig, logger *zerolog.Logger) *BookingService {
	if cfg.MaxBookingDays <= 0 {
		cfg.MaxBookingDays = 365
	}
	return &BookingService{
		repo:       repo,
		checker:    checker,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		cache:      cache,
		cfg:        cfg,
		logger:     logger,
	}
}

// ValidateBookingDate rejects dates in the past or beyond the booking horizon.
func (s *BookingService) ValidateBookingDate(date time.Time) error {
	// Проверяем, что дата не в прошлом
	if date.Before(time.Now().AddDate(0, 0, -1)) {
		return database.ErrPastDate
	}

	// Проверяем максимальную дату
	maxDate := time.Now().AddDate(0, 0, s.cfg.MaxBookingDays)
	if date.After(maxDate) {
		return database.ErrDateTooFar
	}

	return nil
}

// validateAdvance enforces the minimum lead time before a session starts.
func (s *BookingService) validateAdvance(date time.Time, startTime string) error {
	if s.cfg.MinAdvanceHours <= 0 {
		return nil
	}
	startMin, err := models.ClockMinutes(startTime)
	if err != nil {
		return err
	}
	start := date.Add(time.Duration(startMin) * time.Minute)
	if start.Before(time.Now().Add(time.Duration(s.cfg.MinAdvanceHours) * time.Hour)) {
		return database.ErrPastDate
	}
	return nil
}

// CreateBooking claims a slot for the requesting player. If a generated slot
// exists at the requested start it is claimed atomically; otherwise a new
// claimed slot is inserted, and the unique index converts a duplicate insert
// race into ErrSlotNotAvailable.
func (s *BookingService) CreateBooking(ctx context.Context, req *models.BookingRequest) (*models.Slot, error) {
	date, err := time.ParseInLocation(models.DateFormat, req.Date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", req.Date, err)
	}

	// Время приводим к каноничному виду до любых строковых сравнений,
	// иначе "9:00" проскочит мимо проверки пересечений и индекса.
	start, err := models.NormalizeClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q: %w", req.StartTime, err)
	}
	end, err := models.NormalizeClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("invalid end time %q: %w", req.EndTime, err)
	}
	req.StartTime, req.EndTime = start, end

	if err := s.ValidateBookingDate(date); err != nil {
		return nil, err
	}
	if err := s.validateAdvance(date, req.StartTime); err != nil {
		return nil, err
	}

	// Окно расписания и пересечения. Гонку всё равно решает
	// условный UPDATE ниже.
	if err := s.checker.Check(ctx, req.CoachID, date, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	reference := uuid.NewString()

	slot, err := s.repo.FindSlot(ctx, req.CoachID, date, req.StartTime)
	switch {
	case err == nil:
		// Слот на этом старте уже есть, но с другой длительностью.
		// Забирать его молча нельзя: игрок получил бы чужое окно.
		if slot.EndTime != req.EndTime {
			return nil, &scheduling.ConflictError{Slot: *slot}
		}
		slot, err = s.repo.ClaimSlot(ctx, slot.ID, req.PlayerID, reference)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, database.ErrSlotNotFound):
		coach, cerr := s.repo.GetCoachByID(ctx, req.CoachID)
		if cerr != nil {
			return nil, cerr
		}
		branchID := req.BranchID
		if branchID == 0 {
			branchID = coach.BranchID
		}
		slot = &models.Slot{
			CoachID:   req.CoachID,
			BranchID:  branchID,
			Date:      date,
			Weekday:   date.Weekday(),
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			PlayerID:  req.PlayerID,
			Court:     req.Court,
			Capacity:  models.DefaultCapacity,
			Reference: reference,
		}
		if err := s.repo.CreateClaimedSlot(ctx, slot); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.publishEvent(events.EventBookingRequested, slot, "player")
	s.enqueueUpsert(ctx, slot)
	s.invalidate(ctx, slot)

	s.logger.Info().
		Int64("slot_id", slot.ID).
		Int64("coach_id", slot.CoachID).
		Str("player_id", slot.PlayerID).
		Str("date", req.Date).
		Str("start", req.StartTime).
		Msg("booking requested")

	return slot, nil
}

// ConfirmBooking moves a pending slot to booked after payment completes.
func (s *BookingService) ConfirmBooking(ctx context.Context, slotID int64, playerID string) (*models.Slot, error) {
	slot, err := s.repo.ConfirmSlot(ctx, slotID, playerID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingConfirmed, slot, "player")
	s.enqueueStatus(ctx, slot)
	s.invalidate(ctx, slot)

	return slot, nil
}

// CancelBooking frees a pending or booked slot back to available.
func (s *BookingService) CancelBooking(ctx context.Context, slotID int64, playerID string) (*models.Slot, error) {
	slot, err := s.repo.ReleaseSlot(ctx, slotID, playerID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCancelled, slot, "player")
	s.enqueueStatus(ctx, slot)
	s.invalidate(ctx, slot)

	return slot, nil
}

// AdminCancelSlot hard-cancels a slot. Terminal for this slot instance;
// regeneration may create a replacement row.
func (s *BookingService) AdminCancelSlot(ctx context.Context, slotID int64) (*models.Slot, error) {
	slot, err := s.repo.CancelSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCancelled, slot, "admin")
	s.enqueueStatus(ctx, slot)
	s.invalidate(ctx, slot)

	return slot, nil
}

// GetAvailability returns the coach's day picture, cached with a short TTL.
func (s *BookingService) GetAvailability(ctx context.Context, coachID int64, date time.Time) (*models.DayAvailability, error) {
	dateStr := date.Format(models.DateFormat)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, coachID, dateStr)
		if err != nil {
			s.logger.Warn().Err(err).Msg("availability cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	schedules, err := s.repo.GetSchedulesForDay(ctx, coachID, date.Weekday())
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.GetSlotsForDay(ctx, coachID, date)
	if err != nil {
		return nil, err
	}

	availability := &models.DayAvailability{
		CoachID:   coachID,
		Date:      dateStr,
		Weekday:   date.Weekday(),
		FetchedAt: time.Now().UTC(),
	}
	for _, sched := range schedules {
		availability.Windows = append(availability.Windows, models.ScheduleWindow{
			StartTime:      sched.StartTime,
			EndTime:        sched.EndTime,
			SessionMinutes: sched.SessionMinutes,
			IsAvailable:    sched.IsAvailable,
		})
	}
	for _, slot := range slots {
		switch {
		case slot.Status == models.SlotStatusAvailable:
			availability.Open = append(availability.Open, slot)
		case slot.Blocks():
			availability.Blocking = append(availability.Blocking, slot)
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, availability); err != nil {
			s.logger.Warn().Err(err).Msg("availability cache write failed")
		}
	}

	return availability, nil
}

func (s *BookingService) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	return s.repo.GetSlot(ctx, id)
}

func (s *BookingService) publishEvent(eventType string, slot *models.Slot, changedBy string) {
	if s.eventBus == nil {
		return
	}

	coachName := ""
	if coach, err := s.repo.GetCoachByID(context.Background(), slot.CoachID); err == nil {
		coachName = coach.Name
	}

	payload := events.SlotEventPayload{
		SlotID:    slot.ID,
		CoachID:   slot.CoachID,
		CoachName: coachName,
		PlayerID:  slot.PlayerID,
		Date:      slot.Date.Format(models.DateFormat),
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Status:    slot.Status,
		Reference: slot.Reference,
		ChangedBy: changedBy,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *BookingService) enqueueUpsert(ctx context.Context, slot *models.Slot) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueSlotUpsert(ctx, slot); err != nil {
		s.logger.Error().Err(err).Int64("slot_id", slot.ID).Msg("failed to enqueue slot upsert")
	}
}

func (s *BookingService) enqueueStatus(ctx context.Context, slot *models.Slot) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueSlotStatus(ctx, slot.ID, slot.Status); err != nil {
		s.logger.Error().Err(err).Int64("slot_id", slot.ID).Msg("failed to enqueue slot status")
	}
}

func (s *BookingService) invalidate(ctx context.Context, slot *models.Slot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slot.CoachID, slot.Date.Format(models.DateFormat)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate availability cache")
	}
}
