// Package reservation re-validates a requested slot at commit time, allocates
// equipment items and persists the reservation.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studiobook/internal/apperr"
	"studiobook/internal/calendar"
	"studiobook/internal/equipment"
	"studiobook/internal/events"
	"studiobook/internal/interval"
	"studiobook/internal/isotime"
	"studiobook/internal/metrics"
	"studiobook/internal/models"
	"studiobook/internal/occupancy"
)

// Store is the persistence the pipeline needs. Lookups return
// models.ErrNotFound when no row matches; InsertReservation returns
// classified *apperr.Error values for constraint violations. Service and room
// lookups decide whether a booking is allowed, so they must read current rows
// and not a cached copy.
type Store interface {
	equipment.Source
	GetService(ctx context.Context, tenantID, serviceID string) (*models.Service, error)
	GetRoom(ctx context.Context, tenantID, roomID string) (*models.Room, error)
	GetStaff(ctx context.Context, tenantID, staffID string) (*models.Staff, error)
	CustomerExists(ctx context.Context, tenantID, customerID string) (bool, error)
	ListActiveReservations(ctx context.Context, tenantID string, window interval.Interval) ([]models.Occupancy, error)
	ListCalendarExceptions(ctx context.Context, tenantID string, window interval.Interval) ([]calendar.Exception, error)
	InsertReservation(ctx context.Context, r models.NewReservation) (*models.Reservation, error)
	GetReservation(ctx context.Context, tenantID, reservationID string) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, tenantID, reservationID string, from, to models.ReservationStatus) error
}

// Confirmation describes a persisted reservation.
type Confirmation struct {
	ID             string                       `json:"id"`
	Status         models.ReservationStatus     `json:"status"`
	RoomID         string                       `json:"roomId"`
	StartAt        string                       `json:"startAt"`
	EndAt          string                       `json:"endAt"`
	Buffer         Buffer                       `json:"buffer"`
	EquipmentItems []models.EquipmentAssignment `json:"equipmentItems"`
	StaffIDs       []string                     `json:"staffIds"`
	CustomerID     string                       `json:"customerId,omitempty"`
}

// Pipeline commits reservations.
type Pipeline struct {
	store   Store
	events  events.Publisher
	logger  zerolog.Logger
	timeout time.Duration
	newID   func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds a whole commit, store round trips included.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithIDGenerator replaces the reservation id source.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// NewPipeline wires a pipeline. A nil publisher discards events.
func NewPipeline(store Store, publisher events.Publisher, logger zerolog.Logger, opts ...Option) *Pipeline {
	if publisher == nil {
		publisher = events.Nop{}
	}
	p := &Pipeline{
		store:   store,
		events:  publisher,
		logger:  logger.With().Str("component", "reservation").Logger(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// Commit validates req, checks it against current state and persists it.
// actor is recorded as the creator.
func (p *Pipeline) Commit(ctx context.Context, req Request, actor string) (conf *Confirmation, err error) {
	started := time.Now()
	at := newAttempt()
	defer func() {
		metrics.ObserveCommit(started, err)
		if err != nil {
			p.reject(req, at.fail(), err)
		}
	}()

	cmd, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if err := at.advance(StageValidated); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "commit aborted", err)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	return p.commit(ctx, cmd, actor, at)
}

func (p *Pipeline) commit(ctx context.Context, cmd Command, actor string, at *attempt) (*Confirmation, error) {
	var svc *models.Service
	if cmd.ServiceID != "" {
		found, err := p.store.GetService(ctx, cmd.TenantID, cmd.ServiceID)
		if err != nil {
			return nil, lookupFailure("service", err)
		}
		svc = found
	}

	room, err := p.store.GetRoom(ctx, cmd.TenantID, cmd.RoomID)
	if err != nil {
		return nil, lookupFailure("room", err)
	}
	if !room.Active {
		return nil, apperr.ResourceUnavailable(apperr.CodeDisabledResource, "room", true)
	}

	buffer := resolveBuffer(cmd.Override, svc)
	visible := cmd.Visible
	occupied := interval.Interval{
		Start: visible.Start - int64(buffer.BeforeMin)*60_000,
		End:   visible.End + int64(buffer.AfterMin)*60_000,
	}
	if !occupied.Valid() {
		return nil, apperr.Validation(apperr.CodeValidationFailed, apperr.Issue{
			Path:    "(root)",
			Message: "start, end and buffers do not form a valid interval",
		})
	}

	if cmd.CustomerID != "" {
		ok, err := p.store.CustomerExists(ctx, cmd.TenantID, cmd.CustomerID)
		if err != nil {
			return nil, lookupFailure("customer", err)
		}
		if !ok {
			return nil, apperr.ResourceUnavailable(apperr.CodeDisabledResource, "customer", false)
		}
	}

	if cmd.StaffID != "" {
		staff, err := p.store.GetStaff(ctx, cmd.TenantID, cmd.StaffID)
		if err != nil {
			return nil, lookupFailure("staff", err)
		}
		if !staff.Active {
			return nil, apperr.ResourceUnavailable(apperr.CodeDisabledResource, "staff", true)
		}
	}
	if err := at.advance(StageResourcesChecked); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "commit aborted", err)
	}

	exceptions, err := p.store.ListCalendarExceptions(ctx, cmd.TenantID, occupied)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to load calendar exceptions", err)
	}
	cal := calendar.Build(exceptions)
	query := calendar.Query{RoomID: cmd.RoomID, EquipmentIDs: cmd.EquipmentIDs(), StaffIDs: cmd.StaffIDs()}
	if err := cal.AssertOpen(query, visible); err != nil {
		return nil, err
	}
	if err := at.advance(StageScopeChecked); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "commit aborted", err)
	}

	rows, err := p.store.ListActiveReservations(ctx, cmd.TenantID, occupied)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to load reservations", err)
	}
	occ := occupancy.Build(rows, occupied, cmd.StaffID)
	if occ.RoomBusy(cmd.RoomID, occupied) {
		return nil, apperr.Conflict("room overlaps an existing reservation", map[string]any{"roomId": cmd.RoomID})
	}
	if cmd.StaffID != "" && occ.StaffBusy(occupied) {
		return nil, apperr.Conflict("staff overlaps an existing reservation", map[string]any{"staffIds": []string{cmd.StaffID}})
	}

	equip, err := equipment.Load(ctx, p.store, cmd.TenantID, cmd.EquipmentIDs(), occupied, cal)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to load equipment", err)
	}
	if err := equip.Verify(cmd.Equipment); err != nil {
		var unavailable *equipment.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, apperr.ResourceUnavailable(apperr.CodeDisabledResource, "equipment", unavailable.Disabled)
		}
		return nil, apperr.Internal(apperr.CodeInternal, "failed to verify equipment", err)
	}
	if !equip.CheckCapacity(cmd.Equipment, occupied) {
		return nil, apperr.Conflict("equipment overlaps existing reservations", map[string]any{"equipmentIds": cmd.EquipmentIDs()})
	}
	if err := at.advance(StageConflictChecked); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "commit aborted", err)
	}

	assignments, err := equip.Allocate(cmd.Equipment, occupied)
	if err != nil {
		var shortfall *equipment.ShortfallError
		if errors.As(err, &shortfall) {
			return nil, apperr.Conflict("not enough equipment items are free", map[string]any{"equipmentId": shortfall.EquipmentID})
		}
		return nil, apperr.Internal(apperr.CodeInternal, "failed to allocate equipment", err)
	}
	if err := at.advance(StageEquipmentAllocated); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "commit aborted", err)
	}

	row, err := p.store.InsertReservation(ctx, models.NewReservation{
		ID:              p.newID(),
		TenantID:        cmd.TenantID,
		RoomID:          cmd.RoomID,
		StaffID:         cmd.StaffID,
		CustomerID:      cmd.CustomerID,
		ServiceID:       cmd.ServiceID,
		StartAt:         visible.Start,
		EndAt:           visible.End,
		BufferBeforeMin: buffer.BeforeMin,
		BufferAfterMin:  buffer.AfterMin,
		Status:          models.StatusConfirmed,
		Notes:           cmd.Notes,
		CreatedBy:       actor,
		Equipment:       assignments,
	})
	if err != nil {
		return nil, persistFailure(err, cmd)
	}
	if err := at.advance(StagePersisted); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "commit aborted", err)
	}

	conf := &Confirmation{
		ID:             row.ID,
		Status:         row.Status,
		RoomID:         row.RoomID,
		StartAt:        isotime.Format(row.StartAt, cmd.OffsetMinutes),
		EndAt:          isotime.Format(row.EndAt, cmd.OffsetMinutes),
		Buffer:         Buffer{BeforeMin: row.BufferBeforeMin, AfterMin: row.BufferAfterMin},
		EquipmentItems: assignments,
		StaffIDs:       []string{},
		CustomerID:     row.CustomerID.String,
	}
	if conf.EquipmentItems == nil {
		conf.EquipmentItems = []models.EquipmentAssignment{}
	}
	if row.StaffID.Valid {
		conf.StaffIDs = []string{row.StaffID.String}
	}

	p.events.Publish(events.New(events.ReservationCommitted, cmd.TenantID, row.ID, conf))
	p.logger.Info().
		Str("tenant_id", cmd.TenantID).
		Str("reservation_id", row.ID).
		Str("room_id", row.RoomID).
		Str("actor", actor).
		Int("equipment_items", len(assignments)).
		Msg("reservation committed")
	return conf, nil
}

func (p *Pipeline) reject(req Request, reached Stage, err error) {
	code := apperr.CodeInternal
	kind := apperr.KindInternal
	if appErr, ok := apperr.As(err); ok {
		code, kind = appErr.Code, appErr.Kind
	}

	p.events.Publish(events.New(events.ReservationRejected, req.TenantID, "", map[string]any{
		"roomId": req.RoomID,
		"stage":  reached,
		"code":   code,
	}))

	event := p.logger.Warn()
	if kind == apperr.KindInternal {
		event = p.logger.Error()
	}
	event.Err(err).
		Str("tenant_id", req.TenantID).
		Str("room_id", req.RoomID).
		Str("stage", string(reached)).
		Str("code", code).
		Msg("reservation rejected")
}

// resolveBuffer prefers the override, then the service defaults, then zero.
func resolveBuffer(override *Buffer, svc *models.Service) Buffer {
	if override != nil {
		return *override
	}
	if svc != nil {
		return Buffer{BeforeMin: svc.BufferBeforeMin, AfterMin: svc.BufferAfterMin}
	}
	return Buffer{}
}

func lookupFailure(resource string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return apperr.ResourceUnavailable(apperr.CodeDisabledResource, resource, false)
	}
	return apperr.Internal(apperr.CodeInternal, "failed to load "+resource, err)
}

// persistFailure passes classified store errors through. Conflicts raised by
// the store name only the contested resource, so the ids are filled in here.
func persistFailure(err error, cmd Command) error {
	appErr, ok := apperr.As(err)
	if !ok {
		return apperr.Internal(apperr.CodeInternal, "failed to save reservation", err)
	}
	if appErr.Kind != apperr.KindConflict {
		return appErr
	}
	switch appErr.Details["resource"] {
	case "room":
		return apperr.Conflict(appErr.Message, map[string]any{"roomId": cmd.RoomID})
	case "staff":
		return apperr.Conflict(appErr.Message, map[string]any{"staffIds": cmd.StaffIDs()})
	case "equipment":
		return apperr.Conflict(appErr.Message, map[string]any{"equipmentIds": cmd.EquipmentIDs()})
	}
	return appErr
}
