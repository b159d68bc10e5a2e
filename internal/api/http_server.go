package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/metrics"
)

// HTTPServer exposes the booking API.
type HTTPServer struct {
	cfg       config.APIConfig
	booking   domain.BookingService
	schedules domain.ScheduleService
	exporter  domain.ScheduleExporter
	validate  *validator.Validate
	auth      *HTTPAuth
	server    *http.Server
	log       zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, booking domain.BookingService, schedules domain.ScheduleService, exporter domain.ScheduleExporter, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:       cfg,
		booking:   booking,
		schedules: schedules,
		exporter:  exporter,
		validate:  validator.New(),
		auth:      NewHTTPAuth(cfg),
		log:       logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingAction)
	mux.HandleFunc("/api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("/api/v1/coaches", srv.handleCoaches)
	mux.HandleFunc("/api/v1/schedules", srv.handleSchedules)
	mux.HandleFunc("/api/v1/schedules/", srv.handleScheduleByID)
	mux.HandleFunc("/api/v1/schedules/regenerate", srv.handleRegenerate)
	mux.HandleFunc("/api/v1/slots/", srv.handleSlotAction)
	mux.HandleFunc("/api/v1/exports/schedule", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the assembled middleware chain, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
