package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studiobook/internal/interval"
	"studiobook/internal/models"
)

const reservationColumns = `id, tenant_id, room_id, staff_id, customer_id, service_id, start_at, end_at,
	buffer_before_min, buffer_after_min, status, notes, created_by, created_at, updated_at`

type occupancyRow struct {
	ID       string `db:"id"`
	RoomID   string `db:"room_id"`
	StaffID  string `db:"staff_id"`
	Status   string `db:"status"`
	Occupied string `db:"occupied"`
}

type assignmentRow struct {
	EquipmentID string `db:"equipment_id"`
	ItemID      string `db:"equipment_item_id"`
}

// ListActiveReservations returns the occupied interval of every confirmed or
// in-use reservation of the tenant that intersects window.
func (db *DB) ListActiveReservations(ctx context.Context, tenantID string, window interval.Interval) ([]models.Occupancy, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	overlap, overlapArgs := db.occupiedOverlaps("r", window)
	var rows []occupancyRow
	err := db.SelectContext(ctx, &rows, db.Rebind(`
		SELECT r.id, r.room_id, COALESCE(r.staff_id, '') AS staff_id, r.status, `+db.occupiedLiteral("r")+` AS occupied
		FROM reservations r
		WHERE r.tenant_id = ? AND r.status IN `+activeStatuses+` AND `+overlap+`
		ORDER BY r.start_at, r.id`), append([]any{tenantID}, overlapArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}

	out := make([]models.Occupancy, 0, len(rows))
	for _, r := range rows {
		iv, ok := interval.ParseRange(r.Occupied)
		if !ok {
			db.logger.Warn().Str("reservation_id", r.ID).Str("range", r.Occupied).Msg("skipping unparsable occupied range")
			continue
		}
		out = append(out, models.Occupancy{
			ReservationID: r.ID,
			RoomID:        r.RoomID,
			StaffID:       r.StaffID,
			Status:        models.ReservationStatus(r.Status),
			Interval:      iv,
		})
	}
	return out, nil
}

// GetReservation loads a reservation with its equipment assignments.
func (db *DB) GetReservation(ctx context.Context, tenantID, reservationID string) (*models.Reservation, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	var res models.Reservation
	err := db.GetContext(ctx, &res, db.Rebind(`SELECT `+reservationColumns+`
		FROM reservations WHERE tenant_id = ? AND id = ?`), tenantID, reservationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}

	var rows []assignmentRow
	err = db.SelectContext(ctx, &rows, db.Rebind(`
		SELECT equipment_id, COALESCE(equipment_item_id, '') AS equipment_item_id
		FROM reservation_equipment WHERE reservation_id = ? ORDER BY id`), reservationID)
	if err != nil {
		return nil, fmt.Errorf("get reservation equipment %s: %w", reservationID, err)
	}
	res.Equipment = make([]models.EquipmentAssignment, 0, len(rows))
	for _, r := range rows {
		res.Equipment = append(res.Equipment, models.EquipmentAssignment{EquipmentID: r.EquipmentID, EquipmentItemID: r.ItemID})
	}
	return &res, nil
}

// UpdateReservationStatus moves a reservation from one status to another. It
// returns ErrNotFound when the reservation is missing or no longer in from.
func (db *DB) UpdateReservationStatus(ctx context.Context, tenantID, reservationID string, from, to models.ReservationStatus) error {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?`),
		string(to), time.Now().UnixMilli(), tenantID, reservationID, string(from))
	if err != nil {
		return Classify(fmt.Errorf("update reservation status: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertReservation writes the reservation row and then its equipment
// assignments in one transaction. When the assignments cannot be written the
// reservation row is deleted again. Constraint violations come back as
// classified *apperr.Error values.
func (db *DB) InsertReservation(ctx context.Context, r models.NewReservation) (*models.Reservation, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	now := time.Now().UnixMilli()
	status := r.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	row := models.Reservation{
		ID:              r.ID,
		TenantID:        r.TenantID,
		RoomID:          r.RoomID,
		StaffID:         nullString(r.StaffID),
		CustomerID:      nullString(r.CustomerID),
		ServiceID:       nullString(r.ServiceID),
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		BufferBeforeMin: r.BufferBeforeMin,
		BufferAfterMin:  r.BufferAfterMin,
		Status:          status,
		Notes:           nullString(r.Notes),
		CreatedBy:       nullString(r.CreatedBy),
		CreatedAt:       now,
		UpdatedAt:       now,
		Equipment:       r.Equipment,
	}

	_, err := db.NamedExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (:id, :tenant_id, :room_id, :staff_id, :customer_id, :service_id, :start_at, :end_at,
			:buffer_before_min, :buffer_after_min, :status, :notes, :created_by, :created_at, :updated_at)`, &row)
	if err != nil {
		return nil, Classify(fmt.Errorf("insert reservation: %w", err))
	}

	if len(r.Equipment) == 0 {
		row.Equipment = []models.EquipmentAssignment{}
		return &row, nil
	}

	if err := db.insertAssignments(ctx, r); err != nil {
		db.compensate(ctx, r.TenantID, r.ID)
		return nil, classifyAssignment(err, assignedEquipmentIDs(r.Equipment))
	}
	return &row, nil
}

func (db *DB) insertAssignments(ctx context.Context, r models.NewReservation) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO reservation_equipment (tenant_id, reservation_id, equipment_id, equipment_item_id)
		VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare assignment insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range r.Equipment {
		if _, err := stmt.ExecContext(ctx, r.TenantID, r.ID, a.EquipmentID, nullString(a.EquipmentItemID)); err != nil {
			return fmt.Errorf("insert assignment %s: %w", a.EquipmentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// compensate removes a reservation whose assignments failed. It runs even if
// the caller's context is already done.
func (db *DB) compensate(ctx context.Context, tenantID, reservationID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM reservations WHERE tenant_id = ? AND id = ?`), tenantID, reservationID)
	if err != nil {
		db.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("failed to remove reservation after assignment failure")
		return
	}
	db.logger.Warn().Str("reservation_id", reservationID).Msg("reservation removed after assignment failure")
}

func assignedEquipmentIDs(assignments []models.EquipmentAssignment) []string {
	seen := make(map[string]bool, len(assignments))
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !seen[a.EquipmentID] {
			seen[a.EquipmentID] = true
			ids = append(ids, a.EquipmentID)
		}
	}
	return ids
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
