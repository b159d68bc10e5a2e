package domain

import (
	"context"
	"time"

	"courtbook/internal/models"
)

// Repository is the storage surface of the booking core. *database.DB is the
// production implementation.
type Repository interface {
	// Slots
	InsertSlots(ctx context.Context, slots []models.Slot, batchSize int) (int, error)
	DeleteAvailableSlots(ctx context.Context, coachID int64, from, to time.Time) (int64, error)
	CreateClaimedSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	FindSlot(ctx context.Context, coachID int64, date time.Time, startTime string) (*models.Slot, error)
	GetBlockingSlots(ctx context.Context, coachID int64, date time.Time) ([]models.Slot, error)
	GetSlotsForDay(ctx context.Context, coachID int64, date time.Time) ([]models.Slot, error)
	GetSlotsByDateRange(ctx context.Context, from, to time.Time) ([]models.Slot, error)
	ClaimSlot(ctx context.Context, id int64, playerID, reference string) (*models.Slot, error)
	ConfirmSlot(ctx context.Context, id int64, playerID string) (*models.Slot, error)
	ReleaseSlot(ctx context.Context, id int64, playerID string) (*models.Slot, error)
	CancelSlot(ctx context.Context, id int64) (*models.Slot, error)

	// Schedules
	CreateSchedule(ctx context.Context, schedule *models.CoachSchedule) error
	UpdateSchedule(ctx context.Context, schedule *models.CoachSchedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	GetSchedulesByCoach(ctx context.Context, coachID int64) ([]models.CoachSchedule, error)
	GetSchedulesForDay(ctx context.Context, coachID int64, weekday time.Weekday) ([]models.CoachSchedule, error)
	GetAllSchedules(ctx context.Context) ([]models.CoachSchedule, error)

	// Coaches
	GetCoachByID(ctx context.Context, id int64) (*models.Coach, error)
	GetActiveCoaches(ctx context.Context) ([]models.Coach, error)
	CreateOrUpdateCoach(ctx context.Context, coach *models.Coach) error
	SetCoaches(coaches []models.Coach)
	GetCoaches() []models.Coach

	// Sync queue
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// AvailabilityCache caches per-coach day availability. Get returns nil, nil
// on a miss.
type AvailabilityCache interface {
	Get(ctx context.Context, coachID int64, date string) (*models.DayAvailability, error)
	Set(ctx context.Context, availability *models.DayAvailability) error
	Invalidate(ctx context.Context, coachID int64, date string) error
}

// SyncWorker queues mirror updates; implementations must not block the
// booking path on the external mirror.
type SyncWorker interface {
	EnqueueSlotUpsert(ctx context.Context, slot *models.Slot) error
	EnqueueSlotStatus(ctx context.Context, slotID int64, status string) error
	EnqueueReplaceRange(ctx context.Context, from, to time.Time) error
}

// ScheduleExporter writes a date range of slots to a local file and
// returns its path.
type ScheduleExporter interface {
	ExportRange(ctx context.Context, from, to time.Time) (string, error)
}

// ScheduleMirror pushes slot state to an external spreadsheet.
type ScheduleMirror interface {
	UpsertSlotRow(ctx context.Context, slot *models.Slot) error
	UpdateSlotStatus(ctx context.Context, slotID int64, status string) error
	ReplaceScheduleRange(ctx context.Context, from, to time.Time, slots []models.Slot, coaches []models.Coach) error
}

type BookingService interface {
	CreateBooking(ctx context.Context, req *models.BookingRequest) (*models.Slot, error)
	ConfirmBooking(ctx context.Context, slotID int64, playerID string) (*models.Slot, error)
	CancelBooking(ctx context.Context, slotID int64, playerID string) (*models.Slot, error)
	AdminCancelSlot(ctx context.Context, slotID int64) (*models.Slot, error)
	GetAvailability(ctx context.Context, coachID int64, date time.Time) (*models.DayAvailability, error)
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
}

type ScheduleService interface {
	Regenerate(ctx context.Context, coachID int64, from time.Time, days int) (*models.GenerationReport, error)
	CreateSchedule(ctx context.Context, schedule *models.CoachSchedule) error
	UpdateSchedule(ctx context.Context, schedule *models.CoachSchedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	ListSchedules(ctx context.Context, coachID int64) ([]models.CoachSchedule, error)
	ListCoaches(ctx context.Context) ([]models.Coach, error)
	IsManager(userID string) bool
}
