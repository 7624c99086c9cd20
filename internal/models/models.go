package models

import (
	"database/sql"
	"errors"

	"studiobook/internal/interval"
)

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "confirmed"
	StatusInUse     ReservationStatus = "in_use"
	StatusCompleted ReservationStatus = "completed"
	StatusNoShow    ReservationStatus = "no_show"
	StatusCanceled  ReservationStatus = "canceled"
)

// ActiveStatuses are the statuses that occupy a room, staff member or item.
var ActiveStatuses = []ReservationStatus{StatusConfirmed, StatusInUse}

// IsActive reports whether a reservation in this status occupies resources.
func (s ReservationStatus) IsActive() bool {
	return s == StatusConfirmed || s == StatusInUse
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusInUse, StatusCompleted, StatusNoShow, StatusCanceled:
		return true
	}
	return false
}

// Service defines the footprint of one reservation.
type Service struct {
	ID              string `db:"id" json:"id"`
	TenantID        string `db:"tenant_id" json:"tenantId"`
	Name            string `db:"name" json:"name"`
	DurationMin     int    `db:"duration_min" json:"durationMin"`
	BufferBeforeMin int    `db:"buffer_before_min" json:"bufferBeforeMin"`
	BufferAfterMin  int    `db:"buffer_after_min" json:"bufferAfterMin"`
}

// Room is a bookable room with its weekly opening hours.
type Room struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	Name      string    `db:"name" json:"name"`
	OpenHours OpenHours `db:"open_hours" json:"openHours"`
	Active    bool      `db:"active" json:"active"`
}

// Staff is a person that can be attached to a reservation.
type Staff struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenantId"`
	Name     string `db:"name" json:"name"`
	Active   bool   `db:"active" json:"active"`
}

// Occupancy is the occupied interval of one active reservation.
type Occupancy struct {
	ReservationID string
	RoomID        string
	StaffID       string
	Status        ReservationStatus
	Interval      interval.Interval
}

// EquipmentAssignment binds a reservation to one unit of a SKU. ItemID is
// empty for pooled (untracked) units.
type EquipmentAssignment struct {
	EquipmentID     string `json:"equipmentId"`
	EquipmentItemID string `json:"equipmentItemId,omitempty"`
}

// NewReservation is the write model produced by the commit pipeline.
type NewReservation struct {
	ID              string
	TenantID        string
	RoomID          string
	StaffID         string
	CustomerID      string
	ServiceID       string
	StartAt         int64
	EndAt           int64
	BufferBeforeMin int
	BufferAfterMin  int
	Status          ReservationStatus
	Notes           string
	CreatedBy       string
	Equipment       []EquipmentAssignment
}

// Occupied returns [start - before, end + after).
func (r NewReservation) Occupied() interval.Interval {
	return interval.Interval{
		Start: r.StartAt - int64(r.BufferBeforeMin)*60_000,
		End:   r.EndAt + int64(r.BufferAfterMin)*60_000,
	}
}

// Reservation is a persisted reservation row.
type Reservation struct {
	ID              string            `db:"id" json:"id"`
	TenantID        string            `db:"tenant_id" json:"tenantId"`
	RoomID          string            `db:"room_id" json:"roomId"`
	StaffID         sql.NullString    `db:"staff_id" json:"-"`
	CustomerID      sql.NullString    `db:"customer_id" json:"-"`
	ServiceID       sql.NullString    `db:"service_id" json:"-"`
	StartAt         int64             `db:"start_at" json:"startAt"`
	EndAt           int64             `db:"end_at" json:"endAt"`
	BufferBeforeMin int               `db:"buffer_before_min" json:"bufferBeforeMin"`
	BufferAfterMin  int               `db:"buffer_after_min" json:"bufferAfterMin"`
	Status          ReservationStatus `db:"status" json:"status"`
	Notes           sql.NullString    `db:"notes" json:"-"`
	CreatedBy       sql.NullString    `db:"created_by" json:"-"`
	CreatedAt       int64             `db:"created_at" json:"createdAt"`
	UpdatedAt       int64             `db:"updated_at" json:"updatedAt"`

	Equipment []EquipmentAssignment `db:"-" json:"equipment"`
}

// Occupied returns the buffered interval of the reservation.
func (r *Reservation) Occupied() interval.Interval {
	return interval.Interval{
		Start: r.StartAt - int64(r.BufferBeforeMin)*60_000,
		End:   r.EndAt + int64(r.BufferAfterMin)*60_000,
	}
}
