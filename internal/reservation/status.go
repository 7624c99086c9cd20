package reservation

import (
	"context"
	"errors"
	"slices"
	"time"

	"studiobook/internal/apperr"
	"studiobook/internal/events"
	"studiobook/internal/metrics"
	"studiobook/internal/models"
)

// statusTransitions lists the lifecycle moves of a persisted reservation.
// Leaving the active set releases room, staff and equipment occupancy.
var statusTransitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.StatusConfirmed: {models.StatusInUse, models.StatusCanceled, models.StatusNoShow},
	models.StatusInUse:     {models.StatusCompleted},
}

// CanTransition reports whether a reservation may move from one status to
// another.
func CanTransition(from, to models.ReservationStatus) bool {
	return slices.Contains(statusTransitions[from], to)
}

// StatusChange is the result of a successful transition.
type StatusChange struct {
	ID     string                   `json:"id"`
	From   models.ReservationStatus `json:"from"`
	Status models.ReservationStatus `json:"status"`
}

// Transition moves a reservation to a new status. The update is conditional
// on the status that was read, so a concurrent change surfaces as a conflict.
func (p *Pipeline) Transition(ctx context.Context, tenantID, reservationID string, to models.ReservationStatus, actor string) (*StatusChange, error) {
	if tenantID == "" || reservationID == "" || !to.Valid() {
		return nil, apperr.Validation(apperr.CodeValidationFailed, apperr.Issue{
			Path:    "status",
			Message: "unknown reservation status",
		})
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	current, err := p.store.GetReservation(ctx, tenantID, reservationID)
	if err != nil {
		return nil, lookupFailure("reservation", err)
	}
	if !CanTransition(current.Status, to) {
		return nil, apperr.Validation(apperr.CodeValidationFailed, apperr.Issue{
			Path:    "status",
			Message: "cannot change status from " + string(current.Status) + " to " + string(to),
		})
	}

	if err := p.store.UpdateReservationStatus(ctx, tenantID, reservationID, current.Status, to); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, apperr.Conflict("reservation status changed concurrently", map[string]any{
				"reservationId": reservationID,
			})
		}
		return nil, persistFailure(err, Command{RoomID: current.RoomID, StaffID: current.StaffID.String})
	}

	metrics.IncStatusTransition(string(current.Status), string(to))
	change := &StatusChange{ID: reservationID, From: current.Status, Status: to}
	p.events.Publish(events.New(events.ReservationStatusChanged, tenantID, reservationID, map[string]any{
		"from":  current.Status,
		"to":    to,
		"actor": actor,
		"at":    time.Now().UTC().Format(time.RFC3339),
	}))
	p.logger.Info().
		Str("tenant_id", tenantID).
		Str("reservation_id", reservationID).
		Str("from", string(current.Status)).
		Str("to", string(to)).
		Msg("reservation status changed")
	return change, nil
}
