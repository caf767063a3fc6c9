package service

import (
	"context"

	"airshow-pos/models"
)

// ServiceInterface is what the presentation layers call.
type ServiceInterface interface {
	CreateItem(ctx context.Context, in NewItem) (models.InventoryItem, error)
	GetItem(ctx context.Context, id string) (models.InventoryItem, error)
	UpdateItem(ctx context.Context, id string, in ItemUpdate) (models.InventoryItem, error)
	DeactivateItem(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
	ListItems(ctx context.Context, f ListFilter) ([]models.InventoryItem, error)
	LowStock(ctx context.Context, threshold int) ([]models.InventoryItem, error)

	AddToCart(ctx context.Context, cart *Cart, itemID string, qty int) error
	Checkout(ctx context.Context, cart *Cart, payment models.Payment, notes string) (models.Transaction, error)

	Items(ctx context.Context) ([]models.InventoryItem, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
	TurnedAway(ctx context.Context) ([]models.TurnedAwayEntry, error)

	RecordTurnedAway(ctx context.Context, reason string) (models.TurnedAwayEntry, error)
	RecordCustomTurnedAway(ctx context.Context, reason, notes string) (models.TurnedAwayEntry, error)
	TurnedAwayToday(ctx context.Context) ([]models.TurnedAwayEntry, error)
}
