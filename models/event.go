package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemCreated struct {
	ItemID string    `json:"item_id"`
	Name   string    `json:"name"`
	Stock  int       `json:"stock"`
	At     time.Time `json:"at"`
}

func (e ItemCreated) Type() string { return "item.created" }
func (e ItemCreated) Key() string  { return e.ItemID }

type ItemUpdated struct {
	ItemID string    `json:"item_id"`
	At     time.Time `json:"at"`
}

func (e ItemUpdated) Type() string { return "item.updated" }
func (e ItemUpdated) Key() string  { return e.ItemID }

type ItemDeactivated struct {
	ItemID string    `json:"item_id"`
	At     time.Time `json:"at"`
}

func (e ItemDeactivated) Type() string { return "item.deactivated" }
func (e ItemDeactivated) Key() string  { return e.ItemID }

type StockAdjusted struct {
	ItemID   string    `json:"item_id"`
	Delta    int       `json:"delta"` // positive restock, negative sale
	NewStock int       `json:"new_stock"`
	At       time.Time `json:"at"`
}

func (e StockAdjusted) Type() string { return "item.stock_adjusted" }
func (e StockAdjusted) Key() string  { return e.ItemID }

type TransactionCommitted struct {
	TransactionID string          `json:"transaction_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Lines         []Line          `json:"lines"`
	At            time.Time       `json:"at"`
}

func (e TransactionCommitted) Type() string { return "transaction.committed" }
func (e TransactionCommitted) Key() string  { return e.TransactionID }

// StockSyncFailed is raised when a sale was stored but its stock decrement was not.
type StockSyncFailed struct {
	TransactionID string         `json:"transaction_id"`
	Deltas        map[string]int `json:"deltas"`
	Error         string         `json:"error"`
	At            time.Time      `json:"at"`
}

func (e StockSyncFailed) Type() string { return "transaction.stock_sync_failed" }
func (e StockSyncFailed) Key() string  { return e.TransactionID }

type TurnedAwayRecorded struct {
	EntryID string    `json:"entry_id"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

func (e TurnedAwayRecorded) Type() string { return "turned_away.recorded" }
func (e TurnedAwayRecorded) Key() string  { return e.EntryID }
