// Package equipment answers whether equipment SKUs have enough free units for
// an occupied interval and allocates serialized items at commit time.
package equipment

import (
	"context"
	"fmt"

	"studiobook/internal/calendar"
	"studiobook/internal/interval"
)

// ItemStatus is the physical state of a serialized item.
type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemRepair    ItemStatus = "repair"
	ItemLost      ItemStatus = "lost"
)

// SKU is an equipment type. TrackSerial SKUs are booked per physical item;
// others are pooled and limited by Stock.
type SKU struct {
	ID          string `db:"id" json:"id"`
	TenantID    string `db:"tenant_id" json:"tenantId"`
	Name        string `db:"name" json:"name"`
	TrackSerial bool   `db:"track_serial" json:"trackSerial"`
	Stock       int    `db:"stock" json:"stock"`
	Active      bool   `db:"active" json:"active"`
}

// Item is one physical unit of a serialized SKU.
type Item struct {
	ID          string     `db:"id" json:"id"`
	EquipmentID string     `db:"equipment_id" json:"equipmentId"`
	Status      ItemStatus `db:"status" json:"status"`
}

// Usage is the occupied interval of one equipment assignment. ItemID is empty
// for pooled units.
type Usage struct {
	EquipmentID string
	ItemID      string
	Interval    interval.Interval
}

// Requirement asks for Qty units of a SKU.
type Requirement struct {
	EquipmentID string `json:"equipmentId"`
	Qty         int    `json:"qty"`
}

// IDs returns the SKU ids of reqs in order.
func IDs(reqs []Requirement) []string {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.EquipmentID
	}
	return ids
}

// Source loads equipment state for a tenant.
type Source interface {
	ListEquipment(ctx context.Context, tenantID string, ids []string) ([]SKU, error)
	ListEquipmentItems(ctx context.Context, tenantID string, equipmentIDs []string) ([]Item, error)
	ListEquipmentUsage(ctx context.Context, tenantID string, equipmentIDs []string, window interval.Interval) ([]Usage, error)
}

// UnavailableError reports a requested SKU that is missing or inactive.
type UnavailableError struct {
	EquipmentID string
	Disabled    bool
}

func (e *UnavailableError) Error() string {
	if e.Disabled {
		return fmt.Sprintf("equipment %s is inactive", e.EquipmentID)
	}
	return fmt.Sprintf("equipment %s not found", e.EquipmentID)
}

// Context is a snapshot of SKUs, available items, usage and equipment
// exceptions for one search or commit call.
type Context struct {
	skus        map[string]SKU
	available   map[string][]Item
	usageByItem map[string][]interval.Interval
	usageBySKU  map[string][]interval.Interval
	calendar    *calendar.Context
}

// NewContext assembles a context from loaded rows. Items keep their input
// order, which fixes the allocation order.
func NewContext(skus []SKU, items []Item, usage []Usage, cal *calendar.Context) *Context {
	c := &Context{
		skus:        make(map[string]SKU, len(skus)),
		available:   make(map[string][]Item),
		usageByItem: make(map[string][]interval.Interval),
		usageBySKU:  make(map[string][]interval.Interval),
		calendar:    cal,
	}

	for _, sku := range skus {
		c.skus[sku.ID] = sku
	}

	itemSKU := make(map[string]string, len(items))
	for _, item := range items {
		itemSKU[item.ID] = item.EquipmentID
		if item.Status == ItemAvailable {
			c.available[item.EquipmentID] = append(c.available[item.EquipmentID], item)
		}
	}

	for _, u := range usage {
		if !u.Interval.Valid() {
			continue
		}
		skuID := u.EquipmentID
		if u.ItemID != "" {
			if owner, ok := itemSKU[u.ItemID]; ok {
				skuID = owner
			}
			c.usageByItem[u.ItemID] = append(c.usageByItem[u.ItemID], u.Interval)
		}
		if skuID != "" {
			c.usageBySKU[skuID] = append(c.usageBySKU[skuID], u.Interval)
		}
	}

	for id := range c.usageByItem {
		interval.Sort(c.usageByItem[id])
	}
	for id := range c.usageBySKU {
		interval.Sort(c.usageBySKU[id])
	}
	return c
}

// Empty returns a context with no SKUs.
func Empty(cal *calendar.Context) *Context {
	return NewContext(nil, nil, nil, cal)
}

// Load reads SKUs, items and usage overlapping window for the given ids.
func Load(ctx context.Context, src Source, tenantID string, ids []string, window interval.Interval, cal *calendar.Context) (*Context, error) {
	if len(ids) == 0 {
		return Empty(cal), nil
	}

	skus, err := src.ListEquipment(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load equipment: %w", err)
	}
	items, err := src.ListEquipmentItems(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load equipment items: %w", err)
	}
	usage, err := src.ListEquipmentUsage(ctx, tenantID, ids, window)
	if err != nil {
		return nil, fmt.Errorf("load equipment usage: %w", err)
	}
	return NewContext(skus, items, usage, cal), nil
}

// SKU returns a loaded SKU.
func (c *Context) SKU(id string) (SKU, bool) {
	sku, ok := c.skus[id]
	return sku, ok
}

// Verify fails on the first requirement whose SKU is missing or inactive.
func (c *Context) Verify(reqs []Requirement) error {
	for _, req := range reqs {
		sku, ok := c.skus[req.EquipmentID]
		if !ok {
			return &UnavailableError{EquipmentID: req.EquipmentID}
		}
		if !sku.Active {
			return &UnavailableError{EquipmentID: req.EquipmentID, Disabled: true}
		}
	}
	return nil
}

// Capacity returns max(available items, stock) for a SKU.
func (c *Context) Capacity(id string) int {
	sku, ok := c.skus[id]
	if !ok {
		return 0
	}
	return max(len(c.available[id]), sku.Stock)
}

// Busy counts units of a SKU in use during occupied. Serialized SKUs with
// available items count the booked items. Pooled SKUs count every overlapping
// assignment, whether or not the SKU also has item rows, because pooled units
// are stored without an item id.
func (c *Context) Busy(id string, occupied interval.Interval) int {
	items := c.available[id]
	if !c.skus[id].TrackSerial || len(items) == 0 {
		return interval.CountOverlaps(c.usageBySKU[id], occupied)
	}

	busy := 0
	for _, item := range items {
		if interval.HasOverlap(c.usageByItem[item.ID], occupied.Start, occupied.End) {
			busy++
		}
	}
	return busy
}

// CheckCapacity reports whether every requirement can be met during occupied.
func (c *Context) CheckCapacity(reqs []Requirement, occupied interval.Interval) bool {
	for _, req := range reqs {
		if !c.checkOne(req, occupied) {
			return false
		}
	}
	return true
}

func (c *Context) checkOne(req Requirement, occupied interval.Interval) bool {
	if _, ok := c.skus[req.EquipmentID]; !ok {
		return false
	}
	if interval.HasOverlap(c.calendar.Blocking(calendar.Equipment(req.EquipmentID)), occupied.Start, occupied.End) {
		return false
	}

	capacity := c.Capacity(req.EquipmentID)
	if capacity == 0 {
		return false
	}
	return capacity-c.Busy(req.EquipmentID, occupied) >= req.Qty
}
