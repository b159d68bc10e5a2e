package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// Expand разворачивает недельные правила в конкретные слоты для диапазона
// [from, from+days). Правила с is_available=false пропускаются.
//
// Weekday каждого слота вычисляется из его собственной даты, не копируется
// из правила. Если длительность сессии нацело делит окно, окно нарезается
// на сессии; иначе эмитится один слот на всё окно.
func Expand(coach *models.Coach, schedules []models.CoachSchedule, from time.Time, days int) []models.Slot {
	from = truncateDate(from)
	byWeekday := make(map[time.Weekday][]models.CoachSchedule)
	for _, sched := range schedules {
		if !sched.IsAvailable {
			continue
		}
		byWeekday[sched.Weekday] = append(byWeekday[sched.Weekday], sched)
	}

	var slots []models.Slot
	for d := 0; d < days; d++ {
		date := from.AddDate(0, 0, d)
		for _, sched := range byWeekday[date.Weekday()] {
			slots = append(slots, expandDay(coach, &sched, date)...)
		}
	}
	return slots
}

func expandDay(coach *models.Coach, sched *models.CoachSchedule, date time.Time) []models.Slot {
	startMin, err := models.ClockMinutes(sched.StartTime)
	if err != nil {
		return nil
	}
	endMin, err := models.ClockMinutes(sched.EndTime)
	if err != nil {
		return nil
	}
	window := endMin - startMin
	if window <= 0 {
		return nil
	}

	session := int(sched.SessionMinutes)
	if session <= 0 || window%session != 0 {
		// неровное окно не режем, один слот на всё окно
		session = window
	}

	var branchID int64
	if coach != nil {
		branchID = coach.BranchID
	}

	slots := make([]models.Slot, 0, window/session)
	for cur := startMin; cur+session <= endMin; cur += session {
		slots = append(slots, models.Slot{
			CoachID:   sched.CoachID,
			BranchID:  branchID,
			Date:      date,
			Weekday:   date.Weekday(),
			StartTime: models.MinutesClock(cur),
			EndTime:   models.MinutesClock(cur + session),
			Status:    models.SlotStatusAvailable,
			Capacity:  models.DefaultCapacity,
		})
	}
	return slots
}

// Generator materializes coach schedules into bookable slots.
type Generator struct {
	repo      domain.Repository
	log       zerolog.Logger
	batchSize int
}

func NewGenerator(repo domain.Repository, logger zerolog.Logger, batchSize int) *Generator {
	if batchSize <= 0 {
		batchSize = models.DefaultSlotBatchSize
	}
	return &Generator{
		repo:      repo,
		log:       logger.With().Str("component", "generator").Logger(),
		batchSize: batchSize,
	}
}

// Regenerate rebuilds available slots for [from, from+days). coachID == 0
// regenerates every active coach. Slots with status pending or booked are
// never touched, so re-running is idempotent with respect to claimed time.
func (g *Generator) Regenerate(ctx context.Context, coachID int64, from time.Time, days int) (*models.GenerationReport, error) {
	if days <= 0 {
		days = models.DefaultGenerationDays
	}
	from = truncateDate(from)
	to := from.AddDate(0, 0, days)

	var coaches []models.Coach
	if coachID != 0 {
		coach, err := g.repo.GetCoachByID(ctx, coachID)
		if err != nil {
			return nil, fmt.Errorf("failed to load coach %d: %w", coachID, err)
		}
		coaches = []models.Coach{*coach}
	} else {
		var err error
		coaches, err = g.repo.GetActiveCoaches(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load active coaches: %w", err)
		}
	}

	report := &models.GenerationReport{
		From: from.Format(models.DateFormat),
		To:   to.Format(models.DateFormat),
	}

	existing, err := g.repo.GetSlotsByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing slots: %w", err)
	}
	blocked := blockingByCoachDate(existing)

	for i := range coaches {
		coach := &coaches[i]
		schedules, err := g.repo.GetSchedulesByCoach(ctx, coach.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load schedules for coach %d: %w", coach.ID, err)
		}

		deleted, err := g.repo.DeleteAvailableSlots(ctx, coach.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to clear available slots for coach %d: %w", coach.ID, err)
		}
		report.Deleted += deleted

		slots := filterBlocked(Expand(coach, schedules, from, days), blocked)
		if len(slots) == 0 {
			g.log.Debug().Int64("coach_id", coach.ID).Msg("no slots to generate")
			continue
		}

		created, err := g.repo.InsertSlots(ctx, slots, g.batchSize)
		report.Created += created
		if err != nil {
			var batchErr *database.BatchInsertError
			if errors.As(err, &batchErr) {
				report.Failures = append(report.Failures, models.BatchFailure{
					CoachID:   coach.ID,
					Batch:     batchErr.Batch,
					Committed: batchErr.Committed,
					Error:     batchErr.Err.Error(),
				})
				g.log.Error().Err(batchErr.Err).
					Int64("coach_id", coach.ID).
					Int("batch", batchErr.Batch).
					Int("committed", batchErr.Committed).
					Msg("slot batch insert failed")
				continue
			}
			return report, fmt.Errorf("failed to insert slots for coach %d: %w", coach.ID, err)
		}

		g.log.Info().
			Int64("coach_id", coach.ID).
			Int64("deleted", deleted).
			Int("created", created).
			Str("from", report.From).
			Str("to", report.To).
			Msg("slots regenerated")
	}

	return report, nil
}

type coachDate struct {
	coachID int64
	date    string
}

func blockingByCoachDate(slots []models.Slot) map[coachDate][]models.Slot {
	blocked := make(map[coachDate][]models.Slot)
	for _, s := range slots {
		if !s.Blocks() {
			continue
		}
		key := coachDate{s.CoachID, s.Date.Format(models.DateFormat)}
		blocked[key] = append(blocked[key], s)
	}
	return blocked
}

// filterBlocked drops candidates overlapping a claimed slot. Pending and
// booked slots survive regeneration, so candidates must route around them
// to keep the per-day slot set non-overlapping.
func filterBlocked(candidates []models.Slot, blocked map[coachDate][]models.Slot) []models.Slot {
	if len(blocked) == 0 {
		return candidates
	}
	out := candidates[:0]
	for _, cand := range candidates {
		key := coachDate{cand.CoachID, cand.Date.Format(models.DateFormat)}
		collision := false
		for i := range blocked[key] {
			if blocked[key][i].Overlaps(cand.StartTime, cand.EndTime) {
				collision = true
				break
			}
		}
		if !collision {
			out = append(out, cand)
		}
	}
	return out
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
