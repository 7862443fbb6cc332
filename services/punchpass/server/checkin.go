package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"punchpass-backend/services/punchpass/db"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	CheckInPending   = "pending"
	CheckInConfirmed = "confirmed"
	CheckInFailed    = "failed"
)

// taskRegistry tracks in-flight check-in attempts so they can be
// aborted individually.
type taskRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{cancels: map[string]context.CancelFunc{}}
}

func (r *taskRegistry) add(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[id] = cancel
}

func (r *taskRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, id)
}

func (r *taskRegistry) cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

// CancelCheckIn aborts a running attempt, which then settles as
// failed. Returns false when no attempt with that id is in flight.
func (s Service) CancelCheckIn(id string) bool {
	return s.tasks.cancel(id)
}

// createCheckIn records a pending attempt and kicks off the browser
// leg in the background.
func (s Service) createCheckIn(ctx context.Context, event db.Event, user db.User) (db.CheckIn, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	checkIn := db.CheckIn{
		CheckInID: uuid.NewString(),
		EventID:   event.EventID,
		UserID:    user.UserID,
		Status:    CheckInPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.qry.CreateCheckIn(ctx, db.CreateCheckInParams{
		CheckInID: checkIn.CheckInID,
		EventID:   checkIn.EventID,
		UserID:    checkIn.UserID,
		Status:    checkIn.Status,
		CreatedAt: checkIn.CreatedAt,
		UpdatedAt: checkIn.UpdatedAt,
	})
	if err != nil {
		return db.CheckIn{}, err
	}

	s.startCheckIn(event, user, checkIn.CheckInID)
	return checkIn, nil
}

func (s Service) startCheckIn(event db.Event, user db.User, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.options.CheckInTimeout)
	s.tasks.add(id, cancel)
	go func() {
		defer cancel()
		defer s.tasks.remove(id)
		s.runCheckIn(ctx, event, user, id)
	}()
}

func (s Service) runCheckIn(ctx context.Context, event db.Event, user db.User, id string) {
	ctx, span := tracer.Start(ctx, "runCheckIn")
	defer span.End()
	span.SetAttributes(
		attribute.String("check_in_id", id),
		attribute.Int64("event_id", event.EventID),
	)

	err := s.browser.ConfirmAttendance(ctx, ConfirmRequest{
		EventUrl:     event.Url,
		AttendeeName: fmt.Sprintf("%s %s", user.FirstName, user.LastName),
		Cookies:      s.client.ExportCookies(s.client.BaseUrl.String()),
		DryRun:       s.options.DryRun,
	})
	status := CheckInConfirmed
	if err != nil {
		status = CheckInFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "browser check-in failed")
		slog.ErrorContext(ctx, "browser check-in failed", "check_in", id, "err", err)
	}

	// the attempt context may already be past its deadline, the
	// result still has to land
	rows, err := s.qry.TransitionCheckIn(context.WithoutCancel(ctx), db.TransitionCheckInParams{
		CheckInID: id,
		Status:    status,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record check-in result", "check_in", id, "err", err)
		return
	}
	if rows == 0 {
		slog.WarnContext(ctx, "check-in already settled, result dropped", "check_in", id, "status", status)
	}
}
