package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"airshow-pos/models"
	"airshow-pos/store"
)

type Options struct {
	Logger     logrus.FieldLogger
	Dispatcher EventDispatcher
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Location is the zone used for the date and time fields. Defaults to time.Local.
	Location         *time.Location
	StrictCategories bool
	// ConflictRetries is the number of re-reads after a stale revision.
	// Negative means none; zero means DefaultConflictRetries.
	ConflictRetries int
}

// Service wires the catalog, the transaction engine and the turned-away log
// to one store.
type Service struct {
	catalog    *Catalog
	engine     *Engine
	turnedAway *TurnedAwayLog
}

var _ ServiceInterface = (*Service)(nil)

func NewService(s store.Store, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := func() time.Time { return clock().In(loc) }
	retries := opts.ConflictRetries
	switch {
	case retries == 0:
		retries = DefaultConflictRetries
	case retries < 0:
		retries = 0
	}
	ev := emitter{dispatcher: dispatcher, log: log}

	catalog := &Catalog{
		store:   s,
		log:     log.WithField("component", "catalog"),
		events:  ev,
		now:     now,
		strict:  opts.StrictCategories,
		retries: retries,
	}
	return &Service{
		catalog: catalog,
		engine: &Engine{
			store:   s,
			catalog: catalog,
			log:     log.WithField("component", "engine"),
			events:  ev,
			now:     now,
		},
		turnedAway: &TurnedAwayLog{
			store:  s,
			log:    log.WithField("component", "turned_away"),
			events: ev,
			now:    now,
		},
	}
}

func (s *Service) CreateItem(ctx context.Context, in NewItem) (models.InventoryItem, error) {
	return s.catalog.Create(ctx, in)
}

func (s *Service) GetItem(ctx context.Context, id string) (models.InventoryItem, error) {
	return s.catalog.Get(ctx, id)
}

func (s *Service) UpdateItem(ctx context.Context, id string, in ItemUpdate) (models.InventoryItem, error) {
	return s.catalog.Update(ctx, id, in)
}

func (s *Service) DeactivateItem(ctx context.Context, id string) error {
	return s.catalog.Deactivate(ctx, id)
}

func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	return s.catalog.AdjustStock(ctx, id, delta)
}

func (s *Service) ListItems(ctx context.Context, f ListFilter) ([]models.InventoryItem, error) {
	return s.catalog.List(ctx, f)
}

func (s *Service) LowStock(ctx context.Context, threshold int) ([]models.InventoryItem, error) {
	return s.catalog.LowStock(ctx, threshold)
}

// AddToCart looks the item up in the catalog and adds its current snapshot.
func (s *Service) AddToCart(ctx context.Context, cart *Cart, itemID string, qty int) error {
	if qty < 1 {
		return invalid("quantity", "must be at least 1")
	}
	item, err := s.catalog.Get(ctx, itemID)
	if err != nil {
		return err
	}
	return cart.AddLine(item, qty)
}

func (s *Service) Checkout(ctx context.Context, cart *Cart, payment models.Payment, notes string) (models.Transaction, error) {
	return s.engine.Commit(ctx, cart, payment, notes)
}

// Items returns the whole catalog, inactive items included.
func (s *Service) Items(ctx context.Context) ([]models.InventoryItem, error) {
	return s.catalog.List(ctx, ListFilter{})
}

func (s *Service) Transactions(ctx context.Context) ([]models.Transaction, error) {
	return s.engine.Transactions(ctx)
}

func (s *Service) TurnedAway(ctx context.Context) ([]models.TurnedAwayEntry, error) {
	return s.turnedAway.Entries(ctx)
}

func (s *Service) RecordTurnedAway(ctx context.Context, reason string) (models.TurnedAwayEntry, error) {
	return s.turnedAway.Record(ctx, reason)
}

func (s *Service) RecordCustomTurnedAway(ctx context.Context, reason, notes string) (models.TurnedAwayEntry, error) {
	return s.turnedAway.RecordCustom(ctx, reason, notes)
}

func (s *Service) TurnedAwayToday(ctx context.Context) ([]models.TurnedAwayEntry, error) {
	return s.turnedAway.Today(ctx)
}
