package models

const (
	SlotStatusAvailable = "available"
	SlotStatusPending   = "pending"
	SlotStatusBooked    = "booked"
	SlotStatusCancelled = "cancelled"
)

const (
	BookingTypePrivate    = "private"
	BookingTypeGroup      = "group"
	BookingTypeAssessment = "assessment"
)

const (
	// DateFormat формат календарной даты во всех таблицах и API
	DateFormat = "2006-01-02"

	// ClockFormat формат времени начала/конца слота (минутная точность)
	ClockFormat = "15:04"
)

const (
	// DefaultGenerationDays окно генерации слотов по умолчанию
	DefaultGenerationDays = 30

	// DefaultSlotBatchSize размер пачки при массовой вставке слотов
	DefaultSlotBatchSize = 50

	// DefaultCapacity вместимость слота для индивидуальной тренировки
	DefaultCapacity = 1

	// AvailabilityCacheTTL время жизни кэша доступности в секундах
	AvailabilityCacheTTL = 5 * 60

	// WorkerQueueSize размер очереди воркера синхронизации
	WorkerQueueSize = 1000
)

const (
	SyncTaskUpsertSlot   = "upsert_slot"
	SyncTaskSlotStatus   = "slot_status"
	SyncTaskReplaceRange = "replace_range"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)
