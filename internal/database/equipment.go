package database

import (
	"context"
	"fmt"

	"studiobook/internal/equipment"
	"studiobook/internal/interval"
)

// ListEquipment returns the tenant's SKUs among ids, active or not.
func (db *DB) ListEquipment(ctx context.Context, tenantID string, ids []string) ([]equipment.SKU, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	filter, arg := db.inFilter("id", ids)
	var skus []equipment.SKU
	err := db.selectIn(ctx, &skus, `
		SELECT id, tenant_id, name, track_serial, stock, active
		FROM equipments
		WHERE tenant_id = ? AND `+filter+`
		ORDER BY id`, tenantID, arg)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return skus, nil
}

// ListEquipmentItems returns the serialized items of the given SKUs in
// allocation order.
func (db *DB) ListEquipmentItems(ctx context.Context, tenantID string, equipmentIDs []string) ([]equipment.Item, error) {
	if len(equipmentIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	filter, arg := db.inFilter("equipment_id", equipmentIDs)
	var items []equipment.Item
	err := db.selectIn(ctx, &items, `
		SELECT id, equipment_id, status
		FROM equipment_items
		WHERE tenant_id = ? AND `+filter+`
		ORDER BY equipment_id, sort_order, id`, tenantID, arg)
	if err != nil {
		return nil, fmt.Errorf("list equipment items: %w", err)
	}
	return items, nil
}

type usageRow struct {
	EquipmentID string `db:"equipment_id"`
	ItemID      string `db:"equipment_item_id"`
	Occupied    string `db:"occupied"`
}

// ListEquipmentUsage returns one row per assigned unit of an active
// reservation whose occupied range intersects window. Pooled units carry no
// item id.
func (db *DB) ListEquipmentUsage(ctx context.Context, tenantID string, equipmentIDs []string, window interval.Interval) ([]equipment.Usage, error) {
	if len(equipmentIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	filter, arg := db.inFilter("re.equipment_id", equipmentIDs)
	overlap, overlapArgs := db.occupiedOverlaps("r", window)
	args := append([]any{tenantID, arg}, overlapArgs...)

	var rows []usageRow
	err := db.selectIn(ctx, &rows, `
		SELECT re.equipment_id, COALESCE(re.equipment_item_id, '') AS equipment_item_id, `+db.occupiedLiteral("r")+` AS occupied
		FROM reservation_equipment re
		JOIN reservations r ON r.id = re.reservation_id
		WHERE re.tenant_id = ? AND `+filter+`
			AND r.status IN `+activeStatuses+`
			AND `+overlap+`
		ORDER BY re.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list equipment usage: %w", err)
	}

	out := make([]equipment.Usage, 0, len(rows))
	for _, r := range rows {
		iv, ok := interval.ParseRange(r.Occupied)
		if !ok {
			db.logger.Warn().Str("range", r.Occupied).Msg("skipping unparsable occupied range")
			continue
		}
		out = append(out, equipment.Usage{EquipmentID: r.EquipmentID, ItemID: r.ItemID, Interval: iv})
	}
	return out, nil
}
