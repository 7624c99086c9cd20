package availability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/apperr"
	"studiobook/internal/calendar"
	"studiobook/internal/equipment"
	"studiobook/internal/interval"
	"studiobook/internal/isotime"
	"studiobook/internal/models"
)

type fakeCatalog struct {
	services map[string]*models.Service
	err      error
}

func (f *fakeCatalog) GetService(_ context.Context, _ string, id string) (*models.Service, error) {
	if f.err != nil {
		return nil, f.err
	}
	svc, ok := f.services[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return svc, nil
}

type fakeStore struct {
	rooms        []models.Room
	reservations []models.Occupancy
	exceptions   []calendar.Exception
	skus         []equipment.SKU
	items        []equipment.Item
	usage        []equipment.Usage
	err          error
}

func (f *fakeStore) ListActiveRooms(_ context.Context, _ string, roomID string) ([]models.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Room
	for _, r := range f.rooms {
		if r.Active && (roomID == "" || r.ID == roomID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveReservations(_ context.Context, _ string, _ interval.Interval) ([]models.Occupancy, error) {
	return f.reservations, nil
}

func (f *fakeStore) ListCalendarExceptions(_ context.Context, _ string, _ interval.Interval) ([]calendar.Exception, error) {
	return f.exceptions, nil
}

func (f *fakeStore) ListEquipment(_ context.Context, _ string, _ []string) ([]equipment.SKU, error) {
	return f.skus, nil
}

func (f *fakeStore) ListEquipmentItems(_ context.Context, _ string, _ []string) ([]equipment.Item, error) {
	return f.items, nil
}

func (f *fakeStore) ListEquipmentUsage(_ context.Context, _ string, _ []string, _ interval.Interval) ([]equipment.Usage, error) {
	return f.usage, nil
}

func ms(t *testing.T, value string) int64 {
	t.Helper()
	ts, err := isotime.Parse(value)
	require.NoError(t, err)
	return ts.Millis
}

func span(t *testing.T, from, to string) interval.Interval {
	return interval.Interval{Start: ms(t, from), End: ms(t, to)}
}

func wednesdayRoom(id, start, end string) models.Room {
	return models.Room{
		ID:     id,
		Active: true,
		OpenHours: models.OpenHours{
			3: {{Start: start, End: end}},
		},
	}
}

func hourService() *fakeCatalog {
	return &fakeCatalog{services: map[string]*models.Service{
		"service-1": {ID: "service-1", DurationMin: 60},
	}}
}

func searchRequest(from, to string) Request {
	return Request{
		TenantID:  "tenant-1",
		ServiceID: "service-1",
		Range:     Range{From: from, To: to},
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func newTestEngine(store Store, catalog Catalog) *Engine {
	return NewEngine(store, catalog, zerolog.Nop(), Options{})
}

func starts(res *Result) []string {
	out := make([]string, 0, len(res.Slots))
	for _, s := range res.Slots {
		out = append(out, s.RoomID+"@"+s.Start)
	}
	return out
}

func TestSearch_OpenHoursWithCursor(t *testing.T) {
	store := &fakeStore{rooms: []models.Room{wednesdayRoom("room-1", "09:00", "18:00")}}
	engine := newTestEngine(store, hourService())

	req := searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00")
	req.PageSize = intPtr(2)

	res, err := engine.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []Slot{
		{RoomID: "room-1", Start: "2025-10-01T09:00:00+09:00", End: "2025-10-01T10:00:00+09:00"},
		{RoomID: "room-1", Start: "2025-10-01T10:00:00+09:00", End: "2025-10-01T11:00:00+09:00"},
	}, res.Slots)
	require.NotNil(t, res.NextCursor)
	assert.Equal(t, "2025-10-01T11:00:00+09:00", *res.NextCursor)
}

func TestSearch_RoomAndStaffConflicts(t *testing.T) {
	store := &fakeStore{
		rooms: []models.Room{wednesdayRoom("room-1", "09:00", "18:00")},
		reservations: []models.Occupancy{
			{RoomID: "room-1", StaffID: "staff-1", Status: models.StatusConfirmed,
				Interval: span(t, "2025-10-01T10:00:00+09:00", "2025-10-01T11:00:00+09:00")},
			{StaffID: "staff-1", Status: models.StatusInUse,
				Interval: span(t, "2025-10-01T11:00:00+09:00", "2025-10-01T12:00:00+09:00")},
			{RoomID: "room-1", Status: models.StatusCanceled,
				Interval: span(t, "2025-10-01T09:00:00+09:00", "2025-10-01T10:00:00+09:00")},
		},
		exceptions: []calendar.Exception{
			{Scope: calendar.Staff("staff-1"), Interval: span(t, "2025-10-01T12:00:00+09:00", "2025-10-01T13:00:00+09:00")},
		},
	}
	engine := newTestEngine(store, hourService())

	req := searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00")
	req.StaffID = strPtr("staff-1")

	res, err := engine.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"room-1@2025-10-01T09:00:00+09:00"}, starts(res))
	assert.Nil(t, res.NextCursor)
}

func TestSearch_SerializedEquipment(t *testing.T) {
	store := &fakeStore{
		rooms: []models.Room{wednesdayRoom("room-1", "09:00", "18:00")},
		skus:  []equipment.SKU{{ID: "equip-1", TrackSerial: true, Stock: 2, Active: true}},
		items: []equipment.Item{
			{ID: "item-a", EquipmentID: "equip-1", Status: equipment.ItemAvailable},
			{ID: "item-b", EquipmentID: "equip-1", Status: equipment.ItemAvailable},
			{ID: "item-c", EquipmentID: "equip-1", Status: equipment.ItemRepair},
		},
		usage: []equipment.Usage{
			{EquipmentID: "equip-1", ItemID: "item-a", Interval: span(t, "2025-10-01T09:00:00+09:00", "2025-10-01T10:00:00+09:00")},
		},
	}
	engine := newTestEngine(store, hourService())

	req := searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00")
	wanted := []equipment.Requirement{{EquipmentID: "equip-1", Qty: 2}}
	req.WantedEquipments = wanted

	res, err := engine.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"room-1@2025-10-01T10:00:00+09:00",
		"room-1@2025-10-01T11:00:00+09:00",
		"room-1@2025-10-01T12:00:00+09:00",
	}, starts(res))
	for _, slot := range res.Slots {
		assert.Equal(t, []EquipmentSet{{Items: wanted}}, slot.FeasibleEquipmentSets)
	}
}

func TestSearch_UnknownEquipment(t *testing.T) {
	store := &fakeStore{rooms: []models.Room{wednesdayRoom("room-1", "09:00", "18:00")}}
	engine := newTestEngine(store, hourService())

	req := searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00")
	req.WantedEquipments = []equipment.Requirement{{EquipmentID: "ghost", Qty: 1}}

	_, err := engine.Search(context.Background(), req)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindResourceUnavailable, appErr.Kind)
	assert.Equal(t, apperr.CodeResourceNotFound, appErr.Code)
	assert.Equal(t, 404, appErr.Status)
}

func TestSearch_LookupFailures(t *testing.T) {
	store := &fakeStore{rooms: []models.Room{wednesdayRoom("room-1", "09:00", "18:00")}}

	_, err := newTestEngine(store, &fakeCatalog{}).Search(context.Background(),
		searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00"))
	assert.True(t, apperr.IsKind(err, apperr.KindResourceUnavailable))

	req := searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00")
	req.RoomID = strPtr("room-9")
	_, err = newTestEngine(store, hourService()).Search(context.Background(), req)
	assert.True(t, apperr.IsKind(err, apperr.KindResourceUnavailable))

	_, err = newTestEngine(&fakeStore{err: errors.New("connection reset")}, hourService()).Search(context.Background(),
		searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00"))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeQueryFailed, appErr.Code)
	assert.Equal(t, 500, appErr.Status)
}

func TestSearch_EmptyIsNotAnError(t *testing.T) {
	store := &fakeStore{
		rooms: []models.Room{wednesdayRoom("room-1", "09:00", "18:00")},
		exceptions: []calendar.Exception{
			{Scope: calendar.Tenant(), Interval: span(t, "2025-10-01T00:00:00+09:00", "2025-10-02T00:00:00+09:00")},
		},
	}
	res, err := newTestEngine(store, hourService()).Search(context.Background(),
		searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00"))
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
	assert.Nil(t, res.NextCursor)
}

func TestSearch_BuffersAgainstExistingReservation(t *testing.T) {
	store := &fakeStore{
		rooms: []models.Room{wednesdayRoom("room-1", "09:00", "18:00")},
		reservations: []models.Occupancy{
			{RoomID: "room-1", Status: models.StatusConfirmed,
				Interval: span(t, "2025-10-01T11:00:00+09:00", "2025-10-01T12:00:00+09:00")},
		},
	}
	catalog := &fakeCatalog{services: map[string]*models.Service{
		"service-1": {ID: "service-1", DurationMin: 60, BufferAfterMin: 15},
	}}

	res, err := newTestEngine(store, catalog).Search(context.Background(),
		searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T14:00:00+09:00"))
	require.NoError(t, err)
	// 10:00 would spill its cleanup buffer into the 11:00 booking.
	assert.Equal(t, []string{
		"room-1@2025-10-01T09:00:00+09:00",
		"room-1@2025-10-01T12:00:00+09:00",
		"room-1@2025-10-01T13:00:00+09:00",
	}, starts(res))
}

func TestSearch_AlwaysOpenRoom(t *testing.T) {
	store := &fakeStore{rooms: []models.Room{{ID: "room-1", Active: true}}}

	res, err := newTestEngine(store, hourService()).Search(context.Background(),
		searchRequest("2025-10-01T09:20:00+09:00", "2025-10-01T12:00:00+09:00"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"room-1@2025-10-01T10:00:00+09:00",
		"room-1@2025-10-01T11:00:00+09:00",
	}, starts(res))
}

func TestSearch_GridAnchoredToFreeTimeNotQueryStart(t *testing.T) {
	store := &fakeStore{rooms: []models.Room{
		wednesdayRoom("room-1", "09:00", "18:00"),
		wednesdayRoom("room-2", "09:30", "18:00"),
	}}

	res, err := newTestEngine(store, hourService()).Search(context.Background(),
		searchRequest("2025-10-01T09:30:00+09:00", "2025-10-01T12:00:00+09:00"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"room-2@2025-10-01T09:30:00+09:00",
		"room-1@2025-10-01T10:00:00+09:00",
		"room-2@2025-10-01T10:30:00+09:00",
		"room-1@2025-10-01T11:00:00+09:00",
	}, starts(res))
}

func TestSearch_GlobalClosuresHideSlots(t *testing.T) {
	store := &fakeStore{
		rooms: []models.Room{wednesdayRoom("room-1", "09:00", "13:00")},
		exceptions: []calendar.Exception{
			{Scope: calendar.Equipment(""), Interval: span(t, "2025-10-01T09:00:00+09:00", "2025-10-01T10:00:00+09:00")},
			{Scope: calendar.Staff(""), Interval: span(t, "2025-10-01T11:30:00+09:00", "2025-10-01T12:00:00+09:00")},
		},
	}

	res, err := newTestEngine(store, hourService()).Search(context.Background(),
		searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"room-1@2025-10-01T10:00:00+09:00",
		"room-1@2025-10-01T12:00:00+09:00",
	}, starts(res))
}

func TestSearch_Deterministic(t *testing.T) {
	store := paginationStore(t)
	engine := newTestEngine(store, &fakeCatalog{services: map[string]*models.Service{
		"service-1": {ID: "service-1", DurationMin: 45, BufferBeforeMin: 15},
	}})
	req := searchRequest("2025-10-01T08:00:00+09:00", "2025-10-01T20:00:00+09:00")
	req.PageSize = intPtr(7)

	first, err := engine.Search(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Search(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func paginationStore(t *testing.T) *fakeStore {
	return &fakeStore{
		rooms: []models.Room{
			wednesdayRoom("room-a", "09:00", "17:00"),
			wednesdayRoom("room-b", "09:00", "12:00"),
			wednesdayRoom("room-c", "09:30", "18:00"),
			{ID: "room-d", Active: true},
		},
		reservations: []models.Occupancy{
			{RoomID: "room-a", StaffID: "staff-1", Status: models.StatusConfirmed,
				Interval: span(t, "2025-10-01T10:10:00+09:00", "2025-10-01T11:05:00+09:00")},
			{RoomID: "room-c", Status: models.StatusInUse,
				Interval: span(t, "2025-10-01T13:00:00+09:00", "2025-10-01T14:20:00+09:00")},
		},
		exceptions: []calendar.Exception{
			{Scope: calendar.Room("room-b"), Interval: span(t, "2025-10-01T10:00:00+09:00", "2025-10-01T10:30:00+09:00")},
			{Scope: calendar.Staff("staff-1"), Interval: span(t, "2025-10-01T15:00:00+09:00", "2025-10-01T16:00:00+09:00")},
		},
	}
}

func TestSearch_PaginationCompleteness(t *testing.T) {
	catalogs := map[string]*fakeCatalog{
		"hour":   hourService(),
		"buffer": {services: map[string]*models.Service{"service-1": {ID: "service-1", DurationMin: 45, BufferBeforeMin: 15, BufferAfterMin: 10}}},
		"short":  {services: map[string]*models.Service{"service-1": {ID: "service-1", DurationMin: 10}}},
	}

	for name, catalog := range catalogs {
		for _, staff := range []string{"", "staff-1"} {
			engine := newTestEngine(paginationStore(t), catalog)
			from := "2025-10-01T08:00:00+09:00"
			to := "2025-10-01T20:00:00+09:00"

			full, err := engine.Search(context.Background(), func() Request {
				r := searchRequest(from, to)
				if staff != "" {
					r.StaffID = strPtr(staff)
				}
				r.PageSize = intPtr(MaxPageSize)
				return r
			}())
			require.NoError(t, err)

			q, err := searchRequest(from, to).Validate()
			require.NoError(t, err)
			q.StaffID = staff
			q.PageSize = 10_000
			unbounded, err := engine.Run(context.Background(), q)
			require.NoError(t, err)
			require.Nil(t, unbounded.NextCursor)
			if full.NextCursor == nil {
				assert.Equal(t, starts(unbounded), starts(full))
			}

			for _, size := range []int{1, 2, 3, 5, 8} {
				var collected []string
				cursor := from
				for pages := 0; pages < 1000; pages++ {
					req := searchRequest(cursor, to)
					req.PageSize = intPtr(size)
					if staff != "" {
						req.StaffID = strPtr(staff)
					}
					page, err := engine.Search(context.Background(), req)
					require.NoError(t, err)
					collected = append(collected, starts(page)...)
					if page.NextCursor == nil {
						break
					}
					cursor = *page.NextCursor
				}
				assert.Equal(t, starts(unbounded), collected, "catalog=%s staff=%q size=%d", name, staff, size)
			}
		}
	}
}

func TestPaginate_TiesAtPageBoundary(t *testing.T) {
	mk := func(room string, start int64) candidate {
		return candidate{roomID: room, visible: interval.Interval{Start: start, End: start + 10}}
	}
	all := []candidate{mk("a", 0), mk("a", 10), mk("b", 10), mk("c", 10), mk("a", 20)}
	acceptAll := func(candidate) bool { return true }

	page, cursor, more := paginate(all, 2, acceptAll)
	assert.Equal(t, []candidate{mk("a", 0)}, page)
	assert.True(t, more)
	assert.Equal(t, int64(10), cursor)

	page, cursor, more = paginate(all[1:], 2, acceptAll)
	assert.Equal(t, []candidate{mk("a", 10), mk("b", 10), mk("c", 10)}, page)
	assert.True(t, more)
	assert.Equal(t, int64(20), cursor)

	page, _, more = paginate(all, 10, acceptAll)
	assert.Len(t, page, 5)
	assert.False(t, more)

	page, _, more = paginate(all, 1, func(c candidate) bool { return c.roomID == "a" })
	assert.Equal(t, []candidate{mk("a", 0)}, page)
	assert.True(t, more)
}

func TestOpenIntervals(t *testing.T) {
	window := span(t, "2025-09-30T00:00:00+09:00", "2025-10-02T00:00:00+09:00")
	hours := models.OpenHours{
		2: {{Start: "10:00", End: "12:00"}, {Start: "13:00", End: "15:00"}},
		3: {{Start: "09:00", End: "09:00"}, {Start: "09:00", End: "18:00"}},
	}

	got := openIntervals(hours, window, 9*60)
	assert.Equal(t, []interval.Interval{
		span(t, "2025-09-30T10:00:00+09:00", "2025-09-30T12:00:00+09:00"),
		span(t, "2025-09-30T13:00:00+09:00", "2025-09-30T15:00:00+09:00"),
		span(t, "2025-10-01T09:00:00+09:00", "2025-10-01T18:00:00+09:00"),
	}, got)

	assert.Equal(t, []interval.Interval{window}, openIntervals(nil, window, 9*60))
	assert.Nil(t, openIntervals(models.OpenHours{0: {{Start: "09:00", End: "10:00"}}}, window, 9*60))
}

func TestValidate(t *testing.T) {
	_, err := Request{
		Range:            Range{From: "2025-10-01T09:00:00", To: "2025-10-01T08:00:00+09:00"},
		RoomID:           strPtr(""),
		WantedEquipments: []equipment.Requirement{{EquipmentID: "", Qty: 0}},
		PageSize:         intPtr(51),
	}.Validate()

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidInput, appErr.Code)
	assert.Equal(t, 422, appErr.Status)

	var paths []string
	for _, issue := range appErr.Issues {
		paths = append(paths, issue.Path)
	}
	assert.Equal(t, []string{
		"tenantId", "serviceId", "range.from", "roomId",
		"wantedEquipments.0.equipmentId", "wantedEquipments.0.qty", "pageSize",
	}, paths)

	_, err = searchRequest("2025-10-01T10:00:00+09:00", "2025-10-01T10:00:00+09:00").Validate()
	appErr, _ = apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "range.from must be earlier than range.to", appErr.Issues[0].Message)

	q, err := searchRequest("2025-10-01T09:00:00+09:00", "2025-10-01T13:00:00+09:00").Validate()
	require.NoError(t, err)
	assert.Equal(t, 9*60, q.OffsetMinutes)
	assert.Equal(t, DefaultPageSize, q.PageSize)
}

func TestDecodeRequest_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeRequest(strings.NewReader(`{"tenantId":"t","bogus":1}`))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
