// Package availability computes bookable slots for a service over a time
// range, honoring opening hours, calendar exceptions, existing reservations,
// staff and equipment capacity.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"studiobook/internal/apperr"
	"studiobook/internal/calendar"
	"studiobook/internal/equipment"
	"studiobook/internal/interval"
	"studiobook/internal/isotime"
	"studiobook/internal/metrics"
	"studiobook/internal/models"
	"studiobook/internal/occupancy"
)

// DefaultSlotStep is the grid every generated start is aligned to.
const DefaultSlotStep = 15 * time.Minute

// Catalog resolves reference data that rarely changes.
type Catalog interface {
	GetService(ctx context.Context, tenantID, serviceID string) (*models.Service, error)
}

// Store reads the tenant state a search depends on.
type Store interface {
	equipment.Source
	// ListActiveRooms returns active rooms ordered by id. A non-empty roomID
	// restricts the result to that room.
	ListActiveRooms(ctx context.Context, tenantID, roomID string) ([]models.Room, error)
	ListActiveReservations(ctx context.Context, tenantID string, window interval.Interval) ([]models.Occupancy, error)
	ListCalendarExceptions(ctx context.Context, tenantID string, window interval.Interval) ([]calendar.Exception, error)
}

// Options tune the engine.
type Options struct {
	SlotStep        time.Duration
	DefaultPageSize int
}

// EquipmentSet is one feasible combination of equipment for a slot.
type EquipmentSet struct {
	Items []equipment.Requirement `json:"items"`
}

// Slot is one bookable start for a room.
type Slot struct {
	RoomID                string         `json:"roomId"`
	Start                 string         `json:"start"`
	End                   string         `json:"end"`
	FeasibleEquipmentSets []EquipmentSet `json:"feasibleEquipmentSets,omitempty"`
}

// Result is one page of slots.
type Result struct {
	Slots      []Slot  `json:"slots"`
	NextCursor *string `json:"nextCursor"`
}

// Engine answers availability searches.
type Engine struct {
	store   Store
	catalog Catalog
	logger  zerolog.Logger
	opts    Options
}

// NewEngine creates an engine. Zero options fall back to the defaults.
func NewEngine(store Store, catalog Catalog, logger zerolog.Logger, opts Options) *Engine {
	if opts.SlotStep <= 0 {
		opts.SlotStep = DefaultSlotStep
	}
	if opts.DefaultPageSize <= 0 || opts.DefaultPageSize > MaxPageSize {
		opts.DefaultPageSize = DefaultPageSize
	}
	return &Engine{
		store:   store,
		catalog: catalog,
		logger:  logger.With().Str("component", "availability").Logger(),
		opts:    opts,
	}
}

// Search validates req and runs it.
func (e *Engine) Search(ctx context.Context, req Request) (*Result, error) {
	if req.PageSize == nil {
		size := e.opts.DefaultPageSize
		req.PageSize = &size
	}
	q, err := req.Validate()
	if err != nil {
		metrics.ObserveSearch(time.Now(), 0, err)
		return nil, err
	}
	return e.Run(ctx, q)
}

// Run executes a validated query.
func (e *Engine) Run(ctx context.Context, q Query) (res *Result, err error) {
	started := time.Now()
	defer func() {
		n := 0
		if res != nil {
			n = len(res.Slots)
		}
		metrics.ObserveSearch(started, n, err)
		if err != nil && !apperr.IsKind(err, apperr.KindValidation) && !apperr.IsKind(err, apperr.KindResourceUnavailable) {
			e.logger.Error().Err(err).Str("tenant_id", q.TenantID).Str("service_id", q.ServiceID).Msg("availability search failed")
		}
	}()

	svc, err := e.catalog.GetService(ctx, q.TenantID, q.ServiceID)
	if err != nil {
		return nil, e.lookupError("service", err)
	}
	if svc.DurationMin <= 0 {
		return nil, apperr.Internal(apperr.CodeQueryFailed, "service has no duration", nil)
	}

	rooms, err := e.store.ListActiveRooms(ctx, q.TenantID, q.RoomID)
	if err != nil {
		return nil, queryFailed(err)
	}
	if q.RoomID != "" && len(rooms) == 0 {
		return nil, apperr.ResourceUnavailable(apperr.CodeResourceNotFound, "room", false)
	}

	sh := shape{
		durationMs: int64(svc.DurationMin) * 60_000,
		beforeMs:   int64(svc.BufferBeforeMin) * 60_000,
		afterMs:    int64(svc.BufferAfterMin) * 60_000,
		gridMs:     e.opts.SlotStep.Milliseconds(),
	}
	p := plan{
		genStart:      isotime.LocalDayStart(q.Window.Start, q.OffsetMinutes),
		bounds:        q.Window,
		offsetMinutes: q.OffsetMinutes,
	}
	gen := interval.Interval{Start: p.genStart, End: q.Window.End}
	// One millisecond of slack keeps an occupancy ending exactly at the
	// earliest buffered start in view.
	load := interval.Interval{Start: p.genStart - sh.beforeMs - 1, End: q.Window.End + sh.afterMs}

	rows, err := e.store.ListActiveReservations(ctx, q.TenantID, load)
	if err != nil {
		return nil, queryFailed(err)
	}
	exceptions, err := e.store.ListCalendarExceptions(ctx, q.TenantID, load)
	if err != nil {
		return nil, queryFailed(err)
	}

	cal := calendar.Build(exceptions)
	occ := occupancy.Build(rows, load, q.StaffID)
	equip, err := equipment.Load(ctx, e.store, q.TenantID, equipment.IDs(q.Wanted), load, cal)
	if err != nil {
		return nil, queryFailed(err)
	}
	if err := equip.Verify(q.Wanted); err != nil {
		var unavailable *equipment.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, apperr.ResourceUnavailable(apperr.CodeResourceNotFound, "equipment", unavailable.Disabled)
		}
		return nil, queryFailed(err)
	}

	var all []candidate
	for _, room := range rooms {
		free := openIntervals(room.OpenHours, gen, q.OffsetMinutes)
		free = interval.SubtractAll(free, cal.Blocking(calendar.Tenant()))
		free = interval.SubtractAll(free, cal.Blocking(calendar.Room(room.ID)))
		free = interval.SubtractAll(free, occ.Room(room.ID))
		all = append(all, p.generate(room.ID, free, sh, !room.OpenHours.Defined())...)
	}
	sortCandidates(all)

	staffBlocks := cal.Blocking(calendar.Staff(q.StaffID))
	// Global equipment and staff closures reject a commit even when it names
	// no equipment or staff, so such slots are never offered.
	allEquipment := cal.Intervals(calendar.Scope{Kind: calendar.ScopeEquipment})
	allStaff := cal.Intervals(calendar.Scope{Kind: calendar.ScopeStaff})
	accept := func(c candidate) bool {
		if occ.RoomBusy(c.roomID, c.occupied) {
			return false
		}
		if interval.HasOverlap(allEquipment, c.visible.Start, c.visible.End) ||
			interval.HasOverlap(allStaff, c.visible.Start, c.visible.End) {
			return false
		}
		if q.StaffID != "" {
			if occ.StaffBusy(c.occupied) || interval.HasOverlap(staffBlocks, c.occupied.Start, c.occupied.End) {
				return false
			}
		}
		return equip.CheckCapacity(q.Wanted, c.occupied)
	}

	page, next, more := paginate(all, q.PageSize, accept)

	res = &Result{Slots: make([]Slot, 0, len(page))}
	for _, c := range page {
		slot := Slot{
			RoomID: c.roomID,
			Start:  isotime.Format(c.visible.Start, q.OffsetMinutes),
			End:    isotime.Format(c.visible.End, q.OffsetMinutes),
		}
		if len(q.Wanted) > 0 {
			slot.FeasibleEquipmentSets = []EquipmentSet{{Items: q.Wanted}}
		}
		res.Slots = append(res.Slots, slot)
	}
	if more {
		cursor := isotime.Format(next, q.OffsetMinutes)
		res.NextCursor = &cursor
	}

	e.logger.Debug().
		Str("tenant_id", q.TenantID).
		Str("service_id", q.ServiceID).
		Int("rooms", len(rooms)).
		Int("candidates", len(all)).
		Int("slots", len(res.Slots)).
		Bool("more", more).
		Msg("availability search")
	return res, nil
}

func (e *Engine) lookupError(resource string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return apperr.ResourceUnavailable(apperr.CodeResourceNotFound, resource, false)
	}
	return queryFailed(err)
}

func queryFailed(err error) error {
	if appErr, ok := apperr.As(err); ok {
		return appErr
	}
	return apperr.Internal(apperr.CodeQueryFailed, "availability query failed", err)
}
