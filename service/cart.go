package service

import (
	"github.com/shopspring/decimal"

	"airshow-pos/models"
)

// Cart is the in-progress sale of one session. It is not persisted until
// committed and is not safe for concurrent use.
type Cart struct {
	lines []models.Line
}

func NewCart() *Cart { return &Cart{} }

// AddLine captures the item's current name and price. A second add of the
// same item increases the existing line instead of appending. Stock is not
// checked here.
func (c *Cart) AddLine(item models.InventoryItem, quantity int) error {
	if quantity < 1 {
		return invalid("quantity", "must be at least 1")
	}
	if item.ID == "" {
		return invalid("item_id", "is required")
	}
	if !item.Active {
		return invalid("item_id", "item %s is inactive", item.ID)
	}
	for i := range c.lines {
		if c.lines[i].ItemID == item.ID {
			c.lines[i].Quantity += quantity
			return nil
		}
	}
	c.lines = append(c.lines, models.Line{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  quantity,
	})
	return nil
}

// RemoveLine removes by position. Later positions shift down by one.
func (c *Cart) RemoveLine(index int) error {
	if index < 0 || index >= len(c.lines) {
		return invalid("index", "%d is out of range (cart has %d lines)", index, len(c.lines))
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

func (c *Cart) Clear() { c.lines = nil }

// Total is recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns a copy.
func (c *Cart) Lines() []models.Line {
	out := make([]models.Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }
