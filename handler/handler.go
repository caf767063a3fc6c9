package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"airshow-pos/models"
	"airshow-pos/report"
	"airshow-pos/service"
	"airshow-pos/store"
)

// Handler is the HTTP layer that talks to service.ServiceInterface
type Handler struct {
	svc      service.ServiceInterface
	carts    *CartRegistry
	log      logrus.FieldLogger
	lowStock int
	now      func() time.Time
}

type Options struct {
	Logger            logrus.FieldLogger
	LowStockThreshold int
	// Clock decides what "today" means for reports. Defaults to time.Now.
	Clock func() time.Time
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, opts Options) *Handler {
	h := &Handler{svc: s, carts: NewCartRegistry(), log: opts.Logger, lowStock: opts.LowStockThreshold, now: opts.Clock}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Router returns the full HTTP stack: routes, CORS and request logging.
func (h *Handler) Router(origins []string) http.Handler {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return logMiddleware(h.log, corsMiddleware(origins, r))
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Inventory
	r.HandleFunc("/items", h.CreateItem).Methods(http.MethodPost)
	r.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	r.HandleFunc("/items/low-stock", h.LowStock).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", h.GetItem).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", h.UpdateItem).Methods(http.MethodPatch)
	r.HandleFunc("/items/{id}/deactivate", h.DeactivateItem).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}/stock", h.AdjustStock).Methods(http.MethodPost)

	// Cart
	r.HandleFunc("/carts/{session}", h.GetCart).Methods(http.MethodGet)
	r.HandleFunc("/carts/{session}", h.ClearCart).Methods(http.MethodDelete)
	r.HandleFunc("/carts/{session}/lines", h.AddToCart).Methods(http.MethodPost)
	r.HandleFunc("/carts/{session}/lines/{index}", h.RemoveFromCart).Methods(http.MethodDelete)
	r.HandleFunc("/carts/{session}/checkout", h.Checkout).Methods(http.MethodPost)

	r.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)

	// Turned away
	r.HandleFunc("/turned-away", h.RecordTurnedAway).Methods(http.MethodPost)
	r.HandleFunc("/turned-away", h.ListTurnedAway).Methods(http.MethodGet)
	r.HandleFunc("/turned-away/today", h.TurnedAwayToday).Methods(http.MethodGet)
	r.HandleFunc("/turned-away/reasons", h.QuickReasons).Methods(http.MethodGet)

	// Reports
	r.HandleFunc("/reports/summary", h.SummaryReport).Methods(http.MethodGet)
	r.HandleFunc("/reports/turned-away", h.TurnedAwayReport).Methods(http.MethodGet)
	r.HandleFunc("/reports/sales", h.SalesReport).Methods(http.MethodGet)
	r.HandleFunc("/exports/xlsx", h.ExportXLSX).Methods(http.MethodGet)
}

// --- request / response shapes ---
type createItemReq struct {
	Name        string          `json:"name"`
	Category    models.Category `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description,omitempty"`
	SKU         string          `json:"sku,omitempty"`
}

type updateItemReq struct {
	Name        *string          `json:"name"`
	Category    *models.Category `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
	Stock       *int             `json:"stock"`
	SKU         *string          `json:"sku"`
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

type addLineReq struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type checkoutReq struct {
	PaymentMethod      models.PaymentMethod `json:"payment_method"`
	ConfirmationNumber string               `json:"confirmation_number,omitempty"`
	CustomerNotes      string               `json:"customer_notes,omitempty"`
}

type turnedAwayReq struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
	// Custom entries must carry a reason; quick entries are stored as given.
	Custom bool `json:"custom,omitempty"`
}

type cartLine struct {
	Index     int             `json:"index"`
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResp struct {
	Session string          `json:"session"`
	Lines   []cartLine      `json:"lines"`
	Total   decimal.Decimal `json:"total"`
}

func cartView(session string, c *service.Cart) cartResp {
	lines := c.Lines()
	out := cartResp{Session: session, Lines: make([]cartLine, 0, len(lines)), Total: c.Total()}
	for i, l := range lines {
		out.Lines = append(out.Lines, cartLine{
			Index: i, ItemID: l.ItemID, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity, Subtotal: l.Subtotal(),
		})
	}
	return out
}

type checkoutResp struct {
	Transaction models.Transaction `json:"transaction"`
	Summary     string             `json:"summary"`
	Warning     string             `json:"warning,omitempty"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeServiceErr maps domain and storage errors to status codes.
func (h *Handler) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	var pe *store.PersistenceError
	switch {
	case service.IsValidation(err):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptyCart):
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.As(err, &pe):
		h.log.WithError(err).WithField("path", r.URL.Path).Error("storage failure")
		writeErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// dateRange reads ?range=today|week or ?start=&end=; a missing bound means today.
func (h *Handler) dateRange(r *http.Request) (report.DateRange, error) {
	now := h.now()
	q := r.URL.Query()
	switch q.Get("range") {
	case "today":
		return report.Today(now), nil
	case "week":
		return report.ThisWeek(now), nil
	case "":
	default:
		return report.DateRange{}, errors.New("range must be today or week")
	}
	today := now.Format(models.DateLayout)
	start, end := q.Get("start"), q.Get("end")
	if start == "" {
		start = today
	}
	if end == "" {
		end = today
	}
	return report.NewDateRange(start, end)
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (*report.Data, bool) {
	rng, err := h.dateRange(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	d, err := report.Load(r.Context(), h.svc, rng)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return nil, false
	}
	return d, true
}

func queryBool(r *http.Request, key string, def bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// --- Handler ---

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateItem handles POST /items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	item, err := h.svc.CreateItem(r.Context(), service.NewItem{
		Name:         req.Name,
		Category:     req.Category,
		Price:        req.Price,
		InitialStock: req.Stock,
		Description:  req.Description,
		SKU:          req.SKU,
	})
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// ListItems handles GET /items?active=true&category=Apparel
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context(), service.ListFilter{
		ActiveOnly: queryBool(r, "active", false),
		Category:   models.Category(r.URL.Query().Get("category")),
	})
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// LowStock handles GET /items/low-stock?threshold=5
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.lowStock
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}
	items, err := h.svc.LowStock(r.Context(), threshold)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"threshold": threshold, "items": items})
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateItem handles PATCH /items/{id}; omitted fields are left unchanged.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	item, err := h.svc.UpdateItem(r.Context(), mux.Vars(r)["id"], service.ItemUpdate{
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
		Stock:       req.Stock,
		SKU:         req.SKU,
	})
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) DeactivateItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// AdjustStock handles POST /items/{id}/stock
// body: { "delta": -2 }
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	id := mux.Vars(r)["id"]
	stock, err := h.svc.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "stock": stock})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	_ = h.carts.With(session, func(c *service.Cart) error {
		writeJSON(w, http.StatusOK, cartView(session, c))
		return nil
	})
}

// AddToCart handles POST /carts/{session}/lines
// body: { "item_id": "...", "quantity": 2 }
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addLineReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	session := mux.Vars(r)["session"]
	err := h.carts.With(session, func(c *service.Cart) error {
		if err := h.svc.AddToCart(r.Context(), c, req.ItemID, req.Quantity); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, cartView(session, c))
		return nil
	})
	if err != nil {
		h.writeServiceErr(w, r, err)
	}
}

// RemoveFromCart handles DELETE /carts/{session}/lines/{index}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeErr(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	session := vars["session"]
	err = h.carts.With(session, func(c *service.Cart) error {
		if err := c.RemoveLine(index); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, cartView(session, c))
		return nil
	})
	if err != nil {
		h.writeServiceErr(w, r, err)
	}
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	h.carts.Drop(session)
	writeJSON(w, http.StatusOK, cartView(session, service.NewCart()))
}

// Checkout handles POST /carts/{session}/checkout
// body: { "payment_method": "Zelle", "confirmation_number": "...", "customer_notes": "..." }
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	payment := models.ElectronicPayment(req.PaymentMethod, req.ConfirmationNumber)

	err := h.carts.With(mux.Vars(r)["session"], func(c *service.Cart) error {
		tx, err := h.svc.Checkout(r.Context(), c, payment, req.CustomerNotes)
		var partial *service.PartialStockSyncError
		switch {
		case errors.As(err, &partial):
			writeJSON(w, http.StatusCreated, checkoutResp{Transaction: tx, Summary: tx.Summary(), Warning: partial.Error()})
		case err != nil:
			return err
		default:
			writeJSON(w, http.StatusCreated, checkoutResp{Transaction: tx, Summary: tx.Summary()})
		}
		return nil
	})
	if err != nil {
		h.writeServiceErr(w, r, err)
	}
}

// ListTransactions handles GET /transactions?start=2024-06-01&end=2024-06-30
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	txs := d.Transactions
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// RecordTurnedAway handles POST /turned-away
// body: { "reason": "Too expensive" } or { "reason": "...", "notes": "...", "custom": true }
func (h *Handler) RecordTurnedAway(w http.ResponseWriter, r *http.Request) {
	var req turnedAwayReq
	if err := decode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	var (
		entry models.TurnedAwayEntry
		err   error
	)
	if req.Custom || req.Notes != "" {
		entry, err = h.svc.RecordCustomTurnedAway(r.Context(), req.Reason, req.Notes)
	} else {
		entry, err = h.svc.RecordTurnedAway(r.Context(), req.Reason)
	}
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) ListTurnedAway(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	entries := d.TurnedAway
	if entries == nil {
		entries = []models.TurnedAwayEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// TurnedAwayToday handles GET /turned-away/today, most recent first.
func (h *Handler) TurnedAwayToday(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.TurnedAwayToday(r.Context())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.TurnedAwayEntry{}
	}
	reason, count := service.MostCommonReason(entries)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":              len(entries),
		"most_common_reason": reason,
		"most_common_count":  count,
		"entries":            entries,
	})
}

func (h *Handler) QuickReasons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.QuickReasons)
}

func (h *Handler) SummaryReport(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.loadReport(w, r); ok {
		writeJSON(w, http.StatusOK, report.Summarize(d))
	}
}

func (h *Handler) TurnedAwayReport(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.loadReport(w, r); ok {
		writeJSON(w, http.StatusOK, report.TurnedAway(d))
	}
}

func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.loadReport(w, r); ok {
		writeJSON(w, http.StatusOK, report.Sales(d))
	}
}

// ExportXLSX handles GET /exports/xlsx?start=&end=&transactions=true&turned_away=true&inventory=true
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	opts := report.ExportOptions{
		Transactions: queryBool(r, "transactions", true),
		TurnedAway:   queryBool(r, "turned_away", true),
		Inventory:    queryBool(r, "inventory", true),
	}
	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, d, opts, h.now()); err != nil {
		h.log.WithError(err).Error("failed to generate export")
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(d.Range)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
