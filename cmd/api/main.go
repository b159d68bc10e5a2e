package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbook/internal/api"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/export"
	"courtbook/internal/google"
	"courtbook/internal/logging"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/notify"
	"courtbook/internal/repository"
	"courtbook/internal/scheduling"
	"courtbook/internal/service"
	"courtbook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	coaches, err := loadCoaches(&logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, coaches, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	cache := initAvailabilityCache(redisClient, &logger)
	mirror := initGoogleSheets(cfg, &logger)

	// Зеркало не настроено - воркер не нужен, сервисы переживут nil
	var syncWorker domain.SyncWorker
	if mirror != nil {
		sw := worker.NewSyncWorker(db, mirror, redisClient, worker.RetryPolicy{Jitter: 0.2}, &logger)
		go sw.Start(ctx)
		syncWorker = sw
	}

	eventBus := events.NewEventBus()
	initNotifier(cfg, eventBus, &logger)

	checker := scheduling.NewChecker(db)
	generator := scheduling.NewGenerator(db, logger, cfg.Booking.SlotBatchSize)

	bookingService := service.NewBookingService(db, checker, eventBus, syncWorker, cache, cfg.Booking, &logger)
	scheduleService := service.NewScheduleService(db, generator, eventBus, syncWorker, cache, cfg.Managers, &logger)

	generateInitialSlots(ctx, scheduleService, cfg, &logger)

	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, scheduleService, exporter, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadCoaches(logger *zerolog.Logger) ([]models.Coach, error) {
	coachesPath := os.Getenv("COACHES_PATH")
	if coachesPath == "" {
		coachesPath = "configs/coaches.yaml"
	}
	coachesData, err := os.ReadFile(coachesPath)
	if err != nil {
		logger.Error().Err(err).Str("coaches_path", coachesPath).Msg("read coaches")
		return nil, err
	}

	var coachesConfig struct {
		Coaches []models.Coach `yaml:"coaches"`
	}
	if err := yaml.Unmarshal(coachesData, &coachesConfig); err != nil {
		logger.Error().Err(err).Str("coaches_path", coachesPath).Msg("parse coaches")
		return nil, err
	}

	if err := config.ValidateCoaches(coachesConfig.Coaches); err != nil {
		logger.Error().Err(err).Msg("coaches validation failed")
		return nil, err
	}

	return coachesConfig.Coaches, nil
}

func initDatabase(cfg *config.Config, coaches []models.Coach, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init database")
		return nil, err
	}

	db.SetCoaches(coaches)
	for i := range coaches {
		if err := db.CreateOrUpdateCoach(context.Background(), &coaches[i]); err != nil {
			logger.Error().Err(err).Int64("coach_id", coaches[i].ID).Msg("sync coach")
		}
	}
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initAvailabilityCache(redisClient *redis.Client, logger *zerolog.Logger) domain.AvailabilityCache {
	ttl := time.Duration(models.AvailabilityCacheTTL) * time.Second
	fallback := repository.NewMemoryAvailabilityCache(ttl)
	if redisClient == nil {
		return fallback
	}

	primary := repository.NewRedisAvailabilityCache(redisClient, ttl)
	return repository.NewFailoverAvailabilityCache(primary, fallback, logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) domain.ScheduleMirror {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ScheduleSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.ScheduleSpreadsheetID,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without mirror")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.AdminChatID == 0 {
		return
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notifier := notify.NewNotifier(botAPI, cfg.Telegram.AdminChatID, logger)
	notifier.SubscribeAll(bus)
	logger.Info().Int64("chat_id", cfg.Telegram.AdminChatID).Msg("telegram notifications enabled")
}

// generateInitialSlots наполняет календарь при старте, чтобы расписание
// было доступно сразу после выкатки. Занятые слоты генерация не трогает.
func generateInitialSlots(ctx context.Context, schedules domain.ScheduleService, cfg *config.Config, logger *zerolog.Logger) {
	if cfg.Booking.GenerationDays <= 0 {
		return
	}

	report, err := schedules.Regenerate(ctx, 0, time.Now().UTC(), cfg.Booking.GenerationDays)
	if err != nil {
		logger.Error().Err(err).Msg("initial slot generation failed")
		return
	}

	logger.Info().
		Int("created", report.Created).
		Int64("deleted", report.Deleted).
		Bool("partial", report.Partial()).
		Msg("initial slots generated")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("booking API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("booking API stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
