package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studiobook/internal/models"
)

// GetService returns a service of the tenant or ErrNotFound.
func (db *DB) GetService(ctx context.Context, tenantID, serviceID string) (*models.Service, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	var service models.Service
	err := db.GetContext(ctx, &service, db.Rebind(`
		SELECT id, tenant_id, name, duration_min, buffer_before_min, buffer_after_min
		FROM services WHERE tenant_id = ? AND id = ?`), tenantID, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", serviceID, err)
	}
	return &service, nil
}

// GetRoom returns a room of the tenant, active or not, or ErrNotFound.
func (db *DB) GetRoom(ctx context.Context, tenantID, roomID string) (*models.Room, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	var room models.Room
	err := db.GetContext(ctx, &room, db.Rebind(`
		SELECT id, tenant_id, name, open_hours, active
		FROM rooms WHERE tenant_id = ? AND id = ?`), tenantID, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &room, nil
}

// ListActiveRooms returns the tenant's active rooms ordered by id. A non-empty
// roomID narrows the result to that room.
func (db *DB) ListActiveRooms(ctx context.Context, tenantID, roomID string) ([]models.Room, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	query := `SELECT id, tenant_id, name, open_hours, active FROM rooms WHERE tenant_id = ? AND active`
	args := []any{tenantID}
	if roomID != "" {
		query += ` AND id = ?`
		args = append(args, roomID)
	}
	query += ` ORDER BY id`

	var rooms []models.Room
	if err := db.SelectContext(ctx, &rooms, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetStaff returns a staff member of the tenant or ErrNotFound.
func (db *DB) GetStaff(ctx context.Context, tenantID, staffID string) (*models.Staff, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	var staff models.Staff
	err := db.GetContext(ctx, &staff, db.Rebind(`
		SELECT id, tenant_id, name, active FROM staff WHERE tenant_id = ? AND id = ?`), tenantID, staffID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff %s: %w", staffID, err)
	}
	return &staff, nil
}

// CustomerExists reports whether the tenant has a customer with the given id.
// Customers carry no active flag, so existence is the only check.
func (db *DB) CustomerExists(ctx context.Context, tenantID, customerID string) (bool, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	var exists bool
	err := db.GetContext(ctx, &exists, db.Rebind(`
		SELECT EXISTS (SELECT 1 FROM customers WHERE tenant_id = ? AND id = ?)`), tenantID, customerID)
	if err != nil {
		return false, fmt.Errorf("check customer %s: %w", customerID, err)
	}
	return exists, nil
}
