package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"punchpass-backend/lib/scrapers/punchpass"
	"punchpass-backend/lib/timezone"
	"punchpass-backend/services/punchpass/db"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type scheduleResponse struct {
	Schedule []punchpass.Event `json:"schedule"`
}

func (s Service) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GetSchedule")
	defer span.End()

	today := timezone.Now().Format("2006-01-02")
	rows, err := s.qry.GetEventsForDay(ctx, sql.NullString{String: today, Valid: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load schedule")
		writeDetail(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	var events []punchpass.Event
	for _, row := range rows {
		if s.isExcluded(row.Title) {
			continue
		}
		events = append(events, db.EventFromRow(row))
	}
	span.SetAttributes(attribute.Int("event_count", len(events)))

	if len(events) == 0 {
		writeDetail(w, http.StatusNotFound, "No events found for today.")
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Schedule: events})
}

func (s Service) isExcluded(title string) bool {
	for _, excluded := range s.options.ExcludeTitles {
		if strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(excluded)) {
			return true
		}
	}
	return false
}

func (s Service) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GetEvent")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "eventId"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid event id")
		return
	}
	span.SetAttributes(attribute.Int64("event_id", id))

	row, err := s.qry.GetEvent(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Event %d not found.", id)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load event")
		writeDetail(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	writeJSON(w, http.StatusOK, db.EventFromRow(row))
}

type checkInRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type checkInResponse struct {
	Detail   string `json:"detail"`
	Id       string `json:"id"`
	Status   string `json:"status"`
	Location string `json:"location"`
}

type checkInAttempt struct {
	Id       string `json:"id"`
	EventId  int64  `json:"event_id"`
	Status   string `json:"status"`
	Location string `json:"location"`
}

func statusPath(checkInId string) string {
	return fmt.Sprintf("/schedule/check_in/status/%s", checkInId)
}

func (s Service) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "CheckIn")
	defer span.End()

	eventId, err := strconv.ParseInt(chi.URLParam(r, "eventId"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		writeDetail(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}

	event, err := s.qry.GetEvent(ctx, eventId)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Event %d not found.", eventId)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load event")
		writeDetail(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	user, err := s.qry.GetUserByName(ctx, db.GetUserByNameParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "User %s %s not found.", req.FirstName, req.LastName)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load user")
		writeDetail(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	checkIn, err := s.createCheckIn(ctx, event, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create check-in")
		writeDetail(w, http.StatusInternalServerError, "failed to create check-in")
		return
	}

	w.Header().Set("Location", statusPath(checkIn.CheckInID))
	writeJSON(w, http.StatusAccepted, checkInResponse{
		Detail:   fmt.Sprintf("Check-in for %s %s started.", req.FirstName, req.LastName),
		Id:       checkIn.CheckInID,
		Status:   checkIn.Status,
		Location: statusPath(checkIn.CheckInID),
	})
}

type bulkCheckInRequest struct {
	EventIds  []int64 `json:"event_ids"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
}

type bulkCheckInResponse struct {
	CheckIns []checkInAttempt `json:"check_ins"`
}

func (s Service) BulkCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "BulkCheckIn")
	defer span.End()

	var req bulkCheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		writeDetail(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}
	if len(req.EventIds) == 0 {
		writeDetail(w, http.StatusBadRequest, "event_ids must not be empty")
		return
	}
	span.SetAttributes(attribute.Int("event_count", len(req.EventIds)))

	user, err := s.qry.GetUserByName(ctx, db.GetUserByNameParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "User %s %s not found.", req.FirstName, req.LastName)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load user")
		writeDetail(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	events := make([]db.Event, 0, len(req.EventIds))
	for _, eventId := range req.EventIds {
		event, err := s.qry.GetEvent(ctx, eventId)
		if errors.Is(err, sql.ErrNoRows) {
			writeDetail(w, http.StatusNotFound, "Event %d not found.", eventId)
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load event")
			writeDetail(w, http.StatusInternalServerError, "failed to load event")
			return
		}
		events = append(events, event)
	}

	attempts := make([]checkInAttempt, 0, len(events))
	for _, event := range events {
		checkIn, err := s.createCheckIn(ctx, event, user)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create check-in")
			writeDetail(w, http.StatusInternalServerError, "failed to create check-in")
			return
		}
		attempts = append(attempts, checkInAttempt{
			Id:       checkIn.CheckInID,
			EventId:  event.EventID,
			Status:   checkIn.Status,
			Location: statusPath(checkIn.CheckInID),
		})
	}

	writeJSON(w, http.StatusAccepted, bulkCheckInResponse{CheckIns: attempts})
}

type checkInStatusResponse struct {
	Id        string `json:"id"`
	EventId   int64  `json:"event_id"`
	UserId    int64  `json:"user_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CheckInStatus reports an attempt through its status code: 200 when
// confirmed, 500 when failed, a self-referencing 302 while pending and
// 204 for ids this server never issued.
func (s Service) CheckInStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "CheckInStatus")
	defer span.End()

	id := chi.URLParam(r, "checkInId")
	row, err := s.qry.GetCheckIn(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load check-in")
		writeDetail(w, http.StatusInternalServerError, "failed to load check-in")
		return
	}

	body := checkInStatusResponse{
		Id:        row.CheckInID,
		EventId:   row.EventID,
		UserId:    row.UserID,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	switch row.Status {
	case CheckInConfirmed:
		writeJSON(w, http.StatusOK, body)
	case CheckInFailed:
		writeJSON(w, http.StatusInternalServerError, body)
	default:
		w.Header().Set("Location", statusPath(row.CheckInID))
		writeJSON(w, http.StatusFound, body)
	}
}

type createUserRequest struct {
	Email string `json:"email"`
}

// CreateUser resolves an email to a customer record, first against the
// local roster, then against the site's customer search. Remote hits
// are cached and persisted.
func (s Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "CreateUser")
	defer span.End()

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		writeDetail(w, http.StatusBadRequest, "Invalid email address.")
		return
	}

	row, err := s.qry.GetUserByEmail(ctx, req.Email)
	if err == nil {
		writeJSON(w, http.StatusOK, db.UserFromRow(row))
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load user")
		writeDetail(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	user, cached := s.lookup.Get(req.Email)
	if !cached {
		var found bool
		user, found, err = s.client.FetchCustomer(ctx, req.Email)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "customer lookup failed")
			writeDetail(w, http.StatusInternalServerError, "customer lookup failed")
			return
		}
		if !found {
			writeDetail(w, http.StatusNotFound, "No customer found for %s.", req.Email)
			return
		}
		s.lookup.Add(req.Email, user)
	}

	err = s.qry.CreateUser(ctx, db.UserParams(user))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist user")
		writeDetail(w, http.StatusInternalServerError, "failed to persist user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
