package database

// activeStatuses is the SQL tuple of statuses that occupy resources.
const activeStatuses = `('confirmed', 'in_use')`

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		duration_min INTEGER NOT NULL,
		buffer_before_min INTEGER NOT NULL DEFAULT 0,
		buffer_after_min INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		open_hours TEXT,
		active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS equipments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		track_serial BOOLEAN NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS equipment_items (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		equipment_id TEXT NOT NULL REFERENCES equipments(id),
		status TEXT NOT NULL DEFAULT 'available',
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS calendar_exceptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		scope TEXT NOT NULL CHECK (scope IN ('tenant', 'room', 'equipment', 'staff')),
		target_id TEXT,
		start_at INTEGER NOT NULL,
		end_at INTEGER NOT NULL CHECK (end_at > start_at)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		staff_id TEXT REFERENCES staff(id),
		customer_id TEXT REFERENCES customers(id),
		service_id TEXT REFERENCES services(id),
		start_at INTEGER NOT NULL,
		end_at INTEGER NOT NULL CHECK (end_at > start_at),
		buffer_before_min INTEGER NOT NULL DEFAULT 0,
		buffer_after_min INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'confirmed',
		notes TEXT,
		created_by TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_equipment (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		reservation_id TEXT NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		equipment_id TEXT NOT NULL REFERENCES equipments(id),
		equipment_item_id TEXT REFERENCES equipment_items(id)
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		reservation_id TEXT,
		type TEXT NOT NULL,
		payload TEXT,
		created_at INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_rooms_tenant ON rooms(tenant_id, active)`,
	`CREATE INDEX IF NOT EXISTS idx_calendar_exceptions_window ON calendar_exceptions(tenant_id, start_at, end_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_room ON reservations(tenant_id, room_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_staff ON reservations(tenant_id, staff_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_window ON reservations(tenant_id, start_at, end_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reservation_equipment_item ON reservation_equipment(equipment_item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservation_equipment_reservation ON reservation_equipment(reservation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservation_events_reservation ON reservation_events(tenant_id, reservation_id)`,

	// Overlap guards. They run inside the write lock, so they hold under
	// concurrent commits.
	`CREATE TRIGGER IF NOT EXISTS reservations_room_overlap
	BEFORE INSERT ON reservations
	WHEN NEW.status IN ` + activeStatuses + `
	BEGIN
		SELECT RAISE(ABORT, 'reservation overlaps room occupancy')
		WHERE EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.tenant_id = NEW.tenant_id
				AND r.room_id = NEW.room_id
				AND r.status IN ` + activeStatuses + `
				AND r.start_at - r.buffer_before_min * 60000 < NEW.end_at + NEW.buffer_after_min * 60000
				AND NEW.start_at - NEW.buffer_before_min * 60000 < r.end_at + r.buffer_after_min * 60000
		);
	END`,
	`CREATE TRIGGER IF NOT EXISTS reservations_staff_overlap
	BEFORE INSERT ON reservations
	WHEN NEW.staff_id IS NOT NULL AND NEW.status IN ` + activeStatuses + `
	BEGIN
		SELECT RAISE(ABORT, 'reservation overlaps staff occupancy')
		WHERE EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.tenant_id = NEW.tenant_id
				AND r.staff_id = NEW.staff_id
				AND r.status IN ` + activeStatuses + `
				AND r.start_at - r.buffer_before_min * 60000 < NEW.end_at + NEW.buffer_after_min * 60000
				AND NEW.start_at - NEW.buffer_before_min * 60000 < r.end_at + r.buffer_after_min * 60000
		);
	END`,
	`CREATE TRIGGER IF NOT EXISTS reservations_reactivate_overlap
	BEFORE UPDATE OF status, start_at, end_at, buffer_before_min, buffer_after_min, room_id, staff_id ON reservations
	WHEN NEW.status IN ` + activeStatuses + `
	BEGIN
		SELECT RAISE(ABORT, 'reservation overlaps room or staff occupancy')
		WHERE EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.tenant_id = NEW.tenant_id
				AND r.id <> NEW.id
				AND r.status IN ` + activeStatuses + `
				AND (r.room_id = NEW.room_id OR (NEW.staff_id IS NOT NULL AND r.staff_id = NEW.staff_id))
				AND r.start_at - r.buffer_before_min * 60000 < NEW.end_at + NEW.buffer_after_min * 60000
				AND NEW.start_at - NEW.buffer_before_min * 60000 < r.end_at + r.buffer_after_min * 60000
		);
	END`,
	`CREATE TRIGGER IF NOT EXISTS reservation_equipment_item_overlap
	BEFORE INSERT ON reservation_equipment
	WHEN NEW.equipment_item_id IS NOT NULL
	BEGIN
		SELECT RAISE(ABORT, 'equipment item overlaps existing assignment')
		WHERE EXISTS (
			SELECT 1
			FROM reservation_equipment re
			JOIN reservations r ON r.id = re.reservation_id
			JOIN reservations n ON n.id = NEW.reservation_id
			WHERE re.equipment_item_id = NEW.equipment_item_id
				AND r.id <> n.id
				AND r.status IN ` + activeStatuses + `
				AND n.status IN ` + activeStatuses + `
				AND r.start_at - r.buffer_before_min * 60000 < n.end_at + n.buffer_after_min * 60000
				AND n.start_at - n.buffer_before_min * 60000 < r.end_at + r.buffer_after_min * 60000
		);
	END`,
}
