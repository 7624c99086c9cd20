package equipment

import (
	"fmt"

	"studiobook/internal/interval"
	"studiobook/internal/models"
)

// ShortfallError reports that fewer free serialized items were found than
// requested.
type ShortfallError struct {
	EquipmentID string
	Requested   int
	Allocated   int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("equipment %s: %d of %d items free", e.EquipmentID, e.Allocated, e.Requested)
}

// Allocate picks concrete units for every requirement. Serialized SKUs take
// the first free available items in item-list order; pooled SKUs get one
// assignment per unit without an item id.
func (c *Context) Allocate(reqs []Requirement, occupied interval.Interval) ([]models.EquipmentAssignment, error) {
	var out []models.EquipmentAssignment

	for _, req := range reqs {
		sku, ok := c.skus[req.EquipmentID]
		if !ok {
			return nil, &UnavailableError{EquipmentID: req.EquipmentID}
		}

		if !sku.TrackSerial {
			for i := 0; i < req.Qty; i++ {
				out = append(out, models.EquipmentAssignment{EquipmentID: sku.ID})
			}
			continue
		}

		picked := 0
		for _, item := range c.available[sku.ID] {
			if picked == req.Qty {
				break
			}
			if interval.HasOverlap(c.usageByItem[item.ID], occupied.Start, occupied.End) {
				continue
			}
			out = append(out, models.EquipmentAssignment{EquipmentID: sku.ID, EquipmentItemID: item.ID})
			picked++
		}
		if picked < req.Qty {
			return nil, &ShortfallError{EquipmentID: sku.ID, Requested: req.Qty, Allocated: picked}
		}
	}
	return out, nil
}
