package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/models"
	"courtbook/internal/scheduling"
)

// ScheduleService manages recurring coach schedules and slot generation.
type ScheduleService struct {
	repo       domain.Repository
	generator  *scheduling.Generator
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	cache      domain.AvailabilityCache
	managers   map[string]struct{}
	logger     *zerolog.Logger
}

func NewScheduleService(repo domain.Repository, generator *scheduling.Generator, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, cache domain.AvailabilityCache, managers []string, logger *zerolog.Logger) *ScheduleService {
	managerSet := make(map[string]struct{}, len(managers))
	for _, id := range managers {
		managerSet[id] = struct{}{}
	}
	return &ScheduleService{
		repo:       repo,
		generator:  generator,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		cache:      cache,
		managers:   managerSet,
		logger:     logger,
	}
}

// IsManager reports whether the user may perform administrative operations.
func (s *ScheduleService) IsManager(userID string) bool {
	_, ok := s.managers[userID]
	return ok
}

// Regenerate rebuilds available slots and mirrors the whole range.
func (s *ScheduleService) Regenerate(ctx context.Context, coachID int64, from time.Time, days int) (*models.GenerationReport, error) {
	report, err := s.generator.Regenerate(ctx, coachID, from, days)
	if err != nil {
		return report, err
	}

	if s.eventBus != nil {
		payload := events.RegenerationEventPayload{
			From:    report.From,
			To:      report.To,
			Deleted: report.Deleted,
			Created: report.Created,
			Partial: report.Partial(),
		}
		if err := s.eventBus.PublishJSON(events.EventSlotsRegenerated, payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish regeneration event")
		}
	}

	if s.syncWorker != nil {
		fromDate, _ := time.ParseInLocation(models.DateFormat, report.From, time.UTC)
		toDate, _ := time.ParseInLocation(models.DateFormat, report.To, time.UTC)
		if err := s.syncWorker.EnqueueReplaceRange(ctx, fromDate, toDate); err != nil {
			s.logger.Error().Err(err).Msg("failed to enqueue schedule mirror")
		}
	}

	return report, nil
}

func (s *ScheduleService) CreateSchedule(ctx context.Context, schedule *models.CoachSchedule) error {
	if err := s.repo.CreateSchedule(ctx, schedule); err != nil {
		return err
	}
	s.logger.Info().
		Int64("schedule_id", schedule.ID).
		Int64("coach_id", schedule.CoachID).
		Stringer("weekday", schedule.Weekday).
		Msg("schedule created")
	return nil
}

func (s *ScheduleService) UpdateSchedule(ctx context.Context, schedule *models.CoachSchedule) error {
	return s.repo.UpdateSchedule(ctx, schedule)
}

func (s *ScheduleService) DeleteSchedule(ctx context.Context, id int64) error {
	return s.repo.DeleteSchedule(ctx, id)
}

func (s *ScheduleService) ListSchedules(ctx context.Context, coachID int64) ([]models.CoachSchedule, error) {
	if coachID == 0 {
		return s.repo.GetAllSchedules(ctx)
	}
	return s.repo.GetSchedulesByCoach(ctx, coachID)
}

func (s *ScheduleService) ListCoaches(ctx context.Context) ([]models.Coach, error) {
	return s.repo.GetActiveCoaches(ctx)
}
