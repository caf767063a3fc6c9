package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"airshow-pos/models"
	"airshow-pos/store"
)

// DefaultConflictRetries is how many times a mutation is re-applied after losing a race.
const DefaultConflictRetries = 3

type NewItem struct {
	Name         string
	Category     models.Category
	Price        decimal.Decimal
	InitialStock int
	Description  string
	SKU          string
}

// ItemUpdate carries the fields to change; nil fields are left alone.
type ItemUpdate struct {
	Name        *string
	Category    *models.Category
	Price       *decimal.Decimal
	Description *string
	Stock       *int
	SKU         *string
}

type ListFilter struct {
	ActiveOnly bool
	Category   models.Category
}

// StockDelta is one signed stock change; negative for a sale.
type StockDelta struct {
	ItemID string
	Delta  int
}

// Catalog owns the inventory collection. Every mutation is a whole-collection
// read, modify, compare-and-write cycle against the stored revision.
type Catalog struct {
	store   store.Store
	log     logrus.FieldLogger
	events  emitter
	now     func() time.Time
	strict  bool
	retries int
}

func clampStock(current, delta int) int {
	if n := current + delta; n > 0 {
		return n
	}
	return 0
}

func (c *Catalog) validateCategory(cat models.Category) error {
	if c.strict && !cat.Known() {
		return invalid("category", "%q is not one of the booth categories", cat)
	}
	return nil
}

func (c *Catalog) Create(ctx context.Context, in NewItem) (models.InventoryItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.InventoryItem{}, invalid("name", "is required")
	}
	if in.Price.IsNegative() {
		return models.InventoryItem{}, invalid("price", "must be >= 0")
	}
	if in.InitialStock < 0 {
		return models.InventoryItem{}, invalid("stock", "must be >= 0")
	}
	if in.Category == "" {
		in.Category = models.CategoryOther
	}
	if err := c.validateCategory(in.Category); err != nil {
		return models.InventoryItem{}, err
	}

	now := c.now()
	item := models.InventoryItem{
		ID:          uuid.NewString(),
		Name:        name,
		Category:    in.Category,
		Price:       in.Price,
		Description: strings.TrimSpace(in.Description),
		Stock:       in.InitialStock,
		SKU:         strings.TrimSpace(in.SKU),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := c.mutate(ctx, "create", func(items map[string]*models.InventoryItem) error {
		stored := item
		items[item.ID] = &stored
		return nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	c.log.WithFields(logrus.Fields{"item_id": item.ID, "name": item.Name}).Info("item created")
	c.events.emit(ctx, models.ItemCreated{ItemID: item.ID, Name: item.Name, Stock: item.Stock, At: now})
	return item, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (models.InventoryItem, error) {
	items, err := c.load(ctx)
	if err != nil {
		return models.InventoryItem{}, err
	}
	item, ok := items[id]
	if !ok {
		return models.InventoryItem{}, &NotFoundError{Collection: store.Inventory, ID: id}
	}
	return *item, nil
}

func (c *Catalog) Update(ctx context.Context, id string, in ItemUpdate) (models.InventoryItem, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return models.InventoryItem{}, invalid("name", "is required")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return models.InventoryItem{}, invalid("price", "must be >= 0")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return models.InventoryItem{}, invalid("stock", "must be >= 0")
	}
	if in.Category != nil {
		if err := c.validateCategory(*in.Category); err != nil {
			return models.InventoryItem{}, err
		}
	}

	var updated models.InventoryItem
	now := c.now()
	err := c.mutate(ctx, "update", func(items map[string]*models.InventoryItem) error {
		item, ok := items[id]
		if !ok {
			return &NotFoundError{Collection: store.Inventory, ID: id}
		}
		if in.Name != nil {
			item.Name = strings.TrimSpace(*in.Name)
		}
		if in.Category != nil {
			item.Category = *in.Category
		}
		if in.Price != nil {
			item.Price = *in.Price
		}
		if in.Description != nil {
			item.Description = strings.TrimSpace(*in.Description)
		}
		if in.Stock != nil {
			item.Stock = *in.Stock
		}
		if in.SKU != nil {
			item.SKU = strings.TrimSpace(*in.SKU)
		}
		item.UpdatedAt = now
		updated = *item
		return nil
	})
	if err != nil {
		return models.InventoryItem{}, err
	}
	c.events.emit(ctx, models.ItemUpdated{ItemID: id, At: now})
	return updated, nil
}

// Deactivate hides the item from active listings. The document is kept so
// past transactions still resolve.
func (c *Catalog) Deactivate(ctx context.Context, id string) error {
	now := c.now()
	err := c.mutate(ctx, "deactivate", func(items map[string]*models.InventoryItem) error {
		item, ok := items[id]
		if !ok {
			return &NotFoundError{Collection: store.Inventory, ID: id}
		}
		item.Active = false
		item.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	c.log.WithField("item_id", id).Info("item deactivated")
	c.events.emit(ctx, models.ItemDeactivated{ItemID: id, At: now})
	return nil
}

// AdjustStock applies delta with a zero floor and returns the new stock.
func (c *Catalog) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var newStock int
	now := c.now()
	err := c.mutate(ctx, "adjust-stock", func(items map[string]*models.InventoryItem) error {
		item, ok := items[id]
		if !ok {
			return &NotFoundError{Collection: store.Inventory, ID: id}
		}
		item.Stock = clampStock(item.Stock, delta)
		item.UpdatedAt = now
		newStock = item.Stock
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.events.emit(ctx, models.StockAdjusted{ItemID: id, Delta: delta, NewStock: newStock, At: now})
	return newStock, nil
}

// ApplyStockDeltas applies all deltas in a single collection write. Each
// delta is clamped on its own. Items that no longer exist are skipped.
// It returns the resulting stock per touched item.
func (c *Catalog) ApplyStockDeltas(ctx context.Context, deltas []StockDelta) (map[string]int, error) {
	var result map[string]int
	now := c.now()
	err := c.mutate(ctx, "apply-stock-deltas", func(items map[string]*models.InventoryItem) error {
		result = make(map[string]int, len(deltas))
		for _, d := range deltas {
			item, ok := items[d.ItemID]
			if !ok {
				c.log.WithField("item_id", d.ItemID).Warn("stock delta for unknown item skipped")
				continue
			}
			item.Stock = clampStock(item.Stock, d.Delta)
			item.UpdatedAt = now
			result[d.ItemID] = item.Stock
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, d := range deltas {
		if stock, ok := result[d.ItemID]; ok {
			c.events.emit(ctx, models.StockAdjusted{ItemID: d.ItemID, Delta: d.Delta, NewStock: stock, At: now})
		}
	}
	return result, nil
}

// List returns items oldest first.
func (c *Catalog) List(ctx context.Context, f ListFilter) ([]models.InventoryItem, error) {
	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.InventoryItem, 0, len(items))
	for _, item := range items {
		if f.ActiveOnly && !item.Active {
			continue
		}
		if f.Category != "" && item.Category != f.Category {
			continue
		}
		out = append(out, *item)
	}
	sortItems(out)
	return out, nil
}

// LowStock lists active items with stock at or below threshold.
func (c *Catalog) LowStock(ctx context.Context, threshold int) ([]models.InventoryItem, error) {
	active, err := c.List(ctx, ListFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	out := active[:0]
	for _, item := range active {
		if item.Stock <= threshold {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *Catalog) load(ctx context.Context) (map[string]*models.InventoryItem, error) {
	snap, err := c.store.Read(ctx, store.Inventory)
	if err != nil {
		return nil, err
	}
	return decodeItems(snap.Docs)
}

// mutate runs fn against a fresh copy of the inventory and writes it back if
// the revision is unchanged. On conflict it starts over from a new read.
// Errors other than a conflict are returned immediately.
func (c *Catalog) mutate(ctx context.Context, op string, fn func(map[string]*models.InventoryItem) error) error {
	for attempt := 0; ; attempt++ {
		snap, err := c.store.Read(ctx, store.Inventory)
		if err != nil {
			return err
		}
		items, err := decodeItems(snap.Docs)
		if err != nil {
			return err
		}
		if err := fn(items); err != nil {
			return err
		}
		docs, err := encodeItems(items)
		if err != nil {
			return err
		}
		err = c.store.CompareAndWrite(ctx, store.Inventory, snap.Revision, docs)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= c.retries {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"op":       op,
			"revision": snap.Revision,
			"attempt":  attempt + 1,
		}).Warn("inventory changed during update, retrying")
	}
}
