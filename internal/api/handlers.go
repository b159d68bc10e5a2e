package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"courtbook/internal/database"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/scheduling"
)

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	playerID := s.auth.UserID(r)
	if playerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id header")
		return
	}

	var req models.BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.PlayerID = playerID

	if err := s.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field "+strings.ToLower(verrs[0].Field()))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	slot, err := s.booking.CreateBooking(r.Context(), &req)
	if err != nil {
		metrics.IncBooking(bookingResult(err))
		s.writeBookingError(w, err)
		return
	}

	metrics.IncBooking("created")
	writeJSON(w, http.StatusCreated, slot)
}

func (s *HTTPServer) handleBookingAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	id, action, err := splitIDAction(rest)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	playerID := s.auth.UserID(r)

	switch {
	case r.Method == http.MethodGet && action == "":
		slot, err := s.booking.GetSlot(r.Context(), id)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slot)

	case r.Method == http.MethodPost && action == "confirm":
		if playerID == "" {
			writeError(w, http.StatusUnauthorized, "missing user id header")
			return
		}
		slot, err := s.booking.ConfirmBooking(r.Context(), id, playerID)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slot)

	case r.Method == http.MethodPost && action == "cancel":
		if playerID == "" {
			writeError(w, http.StatusUnauthorized, "missing user id header")
			return
		}
		slot, err := s.booking.CancelBooking(r.Context(), id, playerID)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slot)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	coachID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("coach_id")), 10, 64)
	if err != nil || coachID <= 0 {
		writeError(w, http.StatusBadRequest, "coach_id is required")
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.ParseInLocation(models.DateFormat, dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	availability, err := s.booking.GetAvailability(r.Context(), coachID, date)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (s *HTTPServer) handleCoaches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	coaches, err := s.schedules.ListCoaches(r.Context())
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coaches": coaches})
}

func (s *HTTPServer) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var coachID int64
		if raw := strings.TrimSpace(r.URL.Query().Get("coach_id")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid coach_id")
				return
			}
			coachID = id
		}
		schedules, err := s.schedules.ListSchedules(r.Context(), coachID)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})

	case http.MethodPost:
		if !s.requireManager(w, r) {
			return
		}
		var sched models.CoachSchedule
		if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.schedules.CreateSchedule(r.Context(), &sched); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, sched)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleScheduleByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/schedules/")
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	if !s.requireManager(w, r) {
		return
	}

	switch r.Method {
	case http.MethodPut:
		var sched models.CoachSchedule
		if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sched.ID = id
		if err := s.schedules.UpdateSchedule(r.Context(), &sched); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sched)

	case http.MethodDelete:
		if err := s.schedules.DeleteSchedule(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireManager(w, r) {
		return
	}

	var coachID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("coach_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid coach_id")
			return
		}
		coachID = id
	}

	from := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.ParseInLocation(models.DateFormat, raw, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
			return
		}
		from = parsed
	}

	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = parsed
	}

	report, err := s.schedules.Regenerate(r.Context(), coachID, from, days)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}

	metrics.AddSlotsGenerated(report.Created)
	status := http.StatusOK
	if report.Partial() {
		// частичный успех, клиент видит по batch-ошибкам что повторять
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

func (s *HTTPServer) handleSlotAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/slots/")
	id, action, err := splitIDAction(rest)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	if r.Method != http.MethodPost || action != "cancel" {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireManager(w, r) {
		return
	}

	slot, err := s.booking.AdminCancelSlot(r.Context(), id)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// handleExport builds an XLSX of the schedule for [from, to) and streams it
// back to the front desk.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireManager(w, r) {
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}

	from, err := time.ParseInLocation(models.DateFormat, strings.TrimSpace(r.URL.Query().Get("from")), time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	to, err := time.ParseInLocation(models.DateFormat, strings.TrimSpace(r.URL.Query().Get("to")), time.UTC)
	if err != nil || !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD after from")
		return
	}

	path, err := s.exporter.ExportRange(r.Context(), from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("schedule export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}

// requireManager writes 401/403 and returns false unless the caller is a
// configured manager.
func (s *HTTPServer) requireManager(w http.ResponseWriter, r *http.Request) bool {
	userID := s.auth.UserID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id header")
		return false
	}
	if !s.schedules.IsManager(userID) {
		writeError(w, http.StatusForbidden, "manager role required")
		return false
	}
	return true
}

// writeBookingError maps domain errors to stable status codes. Slot-taken
// races are an expected outcome, so they get a friendly 409 message.
func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	var conflict *scheduling.ConflictError
	switch {
	case errors.Is(err, database.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot not found")
	case errors.Is(err, database.ErrSlotNotAvailable), errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "this time is no longer available, please pick another")
	case errors.Is(err, scheduling.ErrOutsideSchedule):
		writeError(w, http.StatusBadRequest, "coach is not available at the requested time")
	case errors.Is(err, database.ErrPastDate):
		writeError(w, http.StatusBadRequest, "date is in the past")
	case errors.Is(err, database.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, "date is too far in the future")
	case errors.Is(err, database.ErrSchemaMismatch):
		writeError(w, http.StatusInternalServerError, "storage schema mismatch")
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func bookingResult(err error) string {
	var conflict *scheduling.ConflictError
	if errors.Is(err, database.ErrSlotNotAvailable) || errors.As(err, &conflict) {
		return "conflict"
	}
	return "error"
}

// splitIDAction parses "{id}" or "{id}/{action}" path suffixes.
func splitIDAction(rest string) (int64, string, error) {
	idPart := rest
	action := ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		idPart = rest[:i]
		action = strings.Trim(rest[i+1:], "/")
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", errors.New("invalid id")
	}
	return id, action, nil
}
