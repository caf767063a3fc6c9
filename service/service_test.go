package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airshow-pos/models"
	"airshow-pos/store"
)

var testNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

// ---- fakeStore wraps a real store and lets tests intercept calls ----
type fakeStore struct {
	store.Store

	ReadFn            func(ctx context.Context, collection string) (store.Snapshot, error)
	WriteFn           func(ctx context.Context, collection string, docs store.Collection) error
	CompareAndWriteFn func(ctx context.Context, collection, revision string, docs store.Collection) error
	PushFn            func(ctx context.Context, collection string, doc json.RawMessage) (string, error)

	mu     sync.Mutex
	writes int
}

func newFakeStore() *fakeStore { return &fakeStore{Store: store.NewMemoryStore()} }

func (f *fakeStore) countWrite() {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
}

func (f *fakeStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) Read(ctx context.Context, collection string) (store.Snapshot, error) {
	if f.ReadFn != nil {
		return f.ReadFn(ctx, collection)
	}
	return f.Store.Read(ctx, collection)
}

func (f *fakeStore) Write(ctx context.Context, collection string, docs store.Collection) error {
	f.countWrite()
	if f.WriteFn != nil {
		return f.WriteFn(ctx, collection, docs)
	}
	return f.Store.Write(ctx, collection, docs)
}

func (f *fakeStore) CompareAndWrite(ctx context.Context, collection, revision string, docs store.Collection) error {
	f.countWrite()
	if f.CompareAndWriteFn != nil {
		return f.CompareAndWriteFn(ctx, collection, revision, docs)
	}
	return f.Store.CompareAndWrite(ctx, collection, revision, docs)
}

func (f *fakeStore) Push(ctx context.Context, collection string, doc json.RawMessage) (string, error) {
	f.countWrite()
	if f.PushFn != nil {
		return f.PushFn(ctx, collection, doc)
	}
	return f.Store.Push(ctx, collection, doc)
}

func (f *fakeStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	f.countWrite()
	return f.Store.Update(ctx, collection, key, fields)
}

func (f *fakeStore) Delete(ctx context.Context, collection, key string) error {
	f.countWrite()
	return f.Store.Delete(ctx, collection, key)
}

// recordingDispatcher keeps every event it is handed.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type())
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *fakeStore
	events *recordingDispatcher
	hook   *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	fs := newFakeStore()
	events := &recordingDispatcher{}
	svc := NewService(fs, Options{
		Logger:     logger,
		Dispatcher: events,
		Clock:      func() time.Time { return testNow },
		Location:   time.UTC,
	})
	return &fixture{svc: svc, store: fs, events: events, hook: hook}
}

func (f *fixture) item(t *testing.T, name, price string, stock int) models.InventoryItem {
	t.Helper()
	item, err := f.svc.CreateItem(context.Background(), NewItem{
		Name:         name,
		Category:     models.CategoryMerchandise,
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	item, err := f.svc.GetItem(context.Background(), id)
	require.NoError(t, err)
	return item.Stock
}

func (f *fixture) levels(level logrus.Level) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range f.hook.AllEntries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func TestAddToCartLooksUpCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hat := f.item(t, "Cap", "20.00", 3)

	cart := NewCart()
	require.NoError(t, f.svc.AddToCart(ctx, cart, hat.ID, 2))
	require.Equal(t, 1, cart.Len())
	assert.Equal(t, "Cap", cart.Lines()[0].Name)

	err := f.svc.AddToCart(ctx, cart, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.svc.AddToCart(ctx, cart, hat.ID, 0)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, cart.Len())
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), Options{})
	assert.Equal(t, DefaultConflictRetries, svc.catalog.retries)

	svc = NewService(store.NewMemoryStore(), Options{ConflictRetries: -1})
	assert.Equal(t, 0, svc.catalog.retries)
}
