package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airshow-pos/models"
	"airshow-pos/service"
	"airshow-pos/store"
)

var testNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

type failingStore struct {
	store.Store
	pushErr error
}

func (f *failingStore) Push(ctx context.Context, collection string, doc json.RawMessage) (string, error) {
	if f.pushErr != nil {
		return "", f.pushErr
	}
	return f.Store.Push(ctx, collection, doc)
}

func newServer(t *testing.T) (http.Handler, *failingStore, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	st := &failingStore{Store: store.NewMemoryStore()}
	clock := func() time.Time { return testNow }
	svc := service.NewService(st, service.Options{Logger: logger, Clock: clock, Location: time.UTC})
	h := NewHandler(svc, Options{Logger: logger, LowStockThreshold: 5, Clock: clock})
	return h.Router(nil), st, hook
}

func do(t *testing.T, srv http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func createItem(t *testing.T, srv http.Handler, name, price string, stock int) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/items", map[string]interface{}{
		"name": name, "category": "Apparel", "price": price, "stock": stock,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &item)
	return item.ID
}

func TestHealth(t *testing.T) {
	srv, _, hook := newServer(t)
	rec := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.InfoLevel, last.Level)
	assert.Equal(t, http.StatusOK, last.Data["status"])
}

func TestItemLifecycle(t *testing.T) {
	srv, _, _ := newServer(t)
	id := createItem(t, srv, "Flight jacket", "89.99", 4)

	rec := do(t, srv, http.MethodPost, "/items", map[string]interface{}{"name": "", "price": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPatch, "/items/"+id, map[string]interface{}{"price": "79.99"})
	require.Equal(t, http.StatusOK, rec.Code)
	var item models.InventoryItem
	decodeBody(t, rec, &item)
	assert.Equal(t, "79.99", item.Price.StringFixed(2))
	assert.Equal(t, 4, item.Stock)

	rec = do(t, srv, http.MethodPost, "/items/"+id+"/stock", map[string]int{"delta": -10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+id+`","stock":0}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/items/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = do(t, srv, http.MethodPost, "/items/"+id+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/items?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/items/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, srv, http.MethodGet, "/items/low-stock?threshold=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartAndCheckout(t *testing.T) {
	srv, _, _ := newServer(t)
	a := createItem(t, srv, "Poster", "10.00", 10)
	b := createItem(t, srv, "Pin", "5.50", 10)

	rec := do(t, srv, http.MethodPost, "/carts/booth-1/checkout", map[string]string{"payment_method": "Cash"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	do(t, srv, http.MethodPost, "/carts/booth-1/lines", map[string]interface{}{"item_id": a, "quantity": 1})
	do(t, srv, http.MethodPost, "/carts/booth-1/lines", map[string]interface{}{"item_id": a, "quantity": 1})
	rec = do(t, srv, http.MethodPost, "/carts/booth-1/lines", map[string]interface{}{"item_id": b, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var cart cartResp
	decodeBody(t, rec, &cart)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
	assert.Equal(t, "25.50", cart.Total.StringFixed(2))

	rec = do(t, srv, http.MethodPost, "/carts/booth-1/lines", map[string]interface{}{"item_id": a, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/carts/booth-1/checkout", map[string]string{"payment_method": "Zelle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "zelle needs a confirmation number")

	rec = do(t, srv, http.MethodPost, "/carts/booth-1/checkout", map[string]string{
		"payment_method": "Zelle", "confirmation_number": "ZX-1", "customer_notes": "gift",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Transaction models.Transaction `json:"transaction"`
		Summary     string             `json:"summary"`
		Warning     string             `json:"warning"`
	}
	decodeBody(t, rec, &out)
	assert.Equal(t, "25.50", out.Transaction.Total.StringFixed(2))
	assert.Contains(t, out.Summary, "Transaction Total: $25.50")
	assert.Empty(t, out.Warning)

	rec = do(t, srv, http.MethodGet, "/carts/booth-1", nil)
	decodeBody(t, rec, &cart)
	assert.Empty(t, cart.Lines)

	rec = do(t, srv, http.MethodGet, "/items/"+a, nil)
	var item models.InventoryItem
	decodeBody(t, rec, &item)
	assert.Equal(t, 8, item.Stock)

	rec = do(t, srv, http.MethodGet, "/transactions?range=today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []models.Transaction
	decodeBody(t, rec, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "ZX-1", txs[0].Payment.ConfirmationNumber)
}

func TestRemoveLineAndClear(t *testing.T) {
	srv, _, _ := newServer(t)
	a := createItem(t, srv, "Poster", "10.00", 10)
	do(t, srv, http.MethodPost, "/carts/s/lines", map[string]interface{}{"item_id": a, "quantity": 1})

	rec := do(t, srv, http.MethodDelete, "/carts/s/lines/3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodDelete, "/carts/s/lines/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	do(t, srv, http.MethodPost, "/carts/s/lines", map[string]interface{}{"item_id": a, "quantity": 1})
	rec = do(t, srv, http.MethodDelete, "/carts/s", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cart cartResp
	decodeBody(t, do(t, srv, http.MethodGet, "/carts/s", nil), &cart)
	assert.Empty(t, cart.Lines)
}

func TestCheckoutStorageFailureKeepsCart(t *testing.T) {
	srv, st, _ := newServer(t)
	a := createItem(t, srv, "Poster", "10.00", 10)
	do(t, srv, http.MethodPost, "/carts/s/lines", map[string]interface{}{"item_id": a, "quantity": 1})

	st.pushErr = &store.PersistenceError{Op: "push", Collection: store.Transactions, Err: errors.New("offline")}
	rec := do(t, srv, http.MethodPost, "/carts/s/checkout", map[string]string{"payment_method": "Cash"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var cart cartResp
	decodeBody(t, do(t, srv, http.MethodGet, "/carts/s", nil), &cart)
	assert.Len(t, cart.Lines, 1)
}

func TestTurnedAwayEndpoints(t *testing.T) {
	srv, _, _ := newServer(t)

	rec := do(t, srv, http.MethodPost, "/turned-away", map[string]string{"reason": models.ReasonTooExpensive})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, srv, http.MethodPost, "/turned-away", map[string]string{"reason": ""})
	require.Equal(t, http.StatusCreated, rec.Code, "quick entries are not validated")
	rec = do(t, srv, http.MethodPost, "/turned-away", map[string]interface{}{"reason": " ", "custom": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPost, "/turned-away", map[string]interface{}{"reason": "Wrong payment type", "notes": "card only"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodGet, "/turned-away/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var today struct {
		Count            int    `json:"count"`
		MostCommonReason string `json:"most_common_reason"`
	}
	decodeBody(t, rec, &today)
	assert.Equal(t, 3, today.Count)

	rec = do(t, srv, http.MethodGet, "/reports/turned-away?start=2024-06-10&end=2024-06-12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Total        int `json:"total"`
		WrongPayment int `json:"wrong_payment"`
		PeakHour     int `json:"peak_hour"`
	}
	decodeBody(t, rec, &stats)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.WrongPayment)
	assert.Equal(t, 15, stats.PeakHour)

	rec = do(t, srv, http.MethodGet, "/turned-away/reasons", nil)
	assert.Contains(t, rec.Body.String(), models.ReasonJustLooking)
}

func TestReportsAndExport(t *testing.T) {
	srv, _, _ := newServer(t)
	a := createItem(t, srv, "Poster", "10.00", 10)
	do(t, srv, http.MethodPost, "/carts/s/lines", map[string]interface{}{"item_id": a, "quantity": 2})
	do(t, srv, http.MethodPost, "/carts/s/checkout", map[string]string{"payment_method": "Cash"})

	rec := do(t, srv, http.MethodGet, "/reports/summary?range=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Range struct {
			Start string `json:"start"`
		} `json:"range"`
		TransactionCount int    `json:"transaction_count"`
		TotalRevenue     string `json:"total_revenue"`
	}
	decodeBody(t, rec, &summary)
	assert.Equal(t, "2024-06-10", summary.Range.Start)
	assert.Equal(t, 1, summary.TransactionCount)
	assert.Equal(t, "20", summary.TotalRevenue)

	rec = do(t, srv, http.MethodGet, "/reports/sales?start=2024-06-13&end=2024-06-20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items_sold":0`)

	rec = do(t, srv, http.MethodGet, "/reports/summary?start=2024-06-12&end=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodGet, "/reports/summary?range=month", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/exports/xlsx?range=today&inventory=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="airshow_data_2024-06-12_2024-06-12.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.NotZero(t, rec.Body.Len())
}
