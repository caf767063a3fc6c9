package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups items on the booth menu.
type Category string

const (
	CategoryApparel     Category = "Apparel"
	CategoryMerchandise Category = "Merchandise"
	CategoryModels      Category = "Models"
	CategoryAccessories Category = "Accessories"
	CategoryBooks       Category = "Books"
	CategoryOther       Category = "Other"
)

// Categories lists the fixed set in display order.
var Categories = []Category{
	CategoryApparel,
	CategoryMerchandise,
	CategoryModels,
	CategoryAccessories,
	CategoryBooks,
	CategoryOther,
}

// Known reports whether c belongs to the fixed set.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// InventoryItem is a sellable catalog entry. Active=false means soft-deleted.
type InventoryItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	SKU         string          `json:"sku"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UnmarshalJSON treats a missing "active" field as active and accepts
// timestamps without a zone offset.
func (i *InventoryItem) UnmarshalJSON(data []byte) error {
	type alias InventoryItem
	aux := struct {
		*alias
		Active    *bool  `json:"active"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}{alias: (*alias)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	i.Active = aux.Active == nil || *aux.Active

	var err error
	if i.CreatedAt, err = ParseTimestamp(aux.CreatedAt); err != nil {
		return err
	}
	if i.UpdatedAt, err = ParseTimestamp(aux.UpdatedAt); err != nil {
		return err
	}
	return nil
}

// StockValue is price × stock.
func (i InventoryItem) StockValue() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Stock)))
}
