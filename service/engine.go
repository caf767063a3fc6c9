package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"airshow-pos/models"
	"airshow-pos/store"
)

// Engine turns carts into stored transactions and applies their stock effect.
type Engine struct {
	store   store.Store
	catalog *Catalog
	log     logrus.FieldLogger
	events  emitter
	now     func() time.Time
}

// Commit stores the sale first and then decrements stock in one inventory write.
//
// If storing the sale fails the cart is left as is and the error is a
// *store.PersistenceError. If the sale is stored but the stock write fails,
// the transaction is returned together with a *PartialStockSyncError and the
// cart is cleared, since the sale is final.
func (e *Engine) Commit(ctx context.Context, cart *Cart, payment models.Payment, notes string) (models.Transaction, error) {
	if cart == nil || cart.Len() == 0 {
		return models.Transaction{}, ErrEmptyCart
	}
	if err := payment.Validate(); err != nil {
		return models.Transaction{}, &ValidationError{Field: "payment", Message: err.Error()}
	}

	tx := models.Transaction{
		Lines:         cart.Lines(),
		Total:         cart.Total(),
		Payment:       payment,
		CustomerNotes: strings.TrimSpace(notes),
		Stamp:         models.NewStamp(e.now()),
	}
	doc, err := json.Marshal(tx)
	if err != nil {
		return models.Transaction{}, &store.PersistenceError{Op: "encode", Collection: store.Transactions, Err: err}
	}
	key, err := e.store.Push(ctx, store.Transactions, doc)
	if err != nil {
		var pe *store.PersistenceError
		if !errors.As(err, &pe) {
			err = &store.PersistenceError{Op: "push", Collection: store.Transactions, Err: err}
		}
		return models.Transaction{}, err
	}
	tx.ID = key

	log := e.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"total":          tx.Total.StringFixed(2),
		"payment_method": tx.Payment.Method,
	})
	log.Info("transaction committed")
	e.events.emit(ctx, models.TransactionCommitted{
		TransactionID: tx.ID,
		Total:         tx.Total,
		PaymentMethod: tx.Payment.Method,
		Lines:         tx.Lines,
		At:            tx.Timestamp,
	})

	deltas := make([]StockDelta, 0, len(tx.Lines))
	for _, l := range tx.Lines {
		deltas = append(deltas, StockDelta{ItemID: l.ItemID, Delta: -l.Quantity})
	}
	if _, err := e.catalog.ApplyStockDeltas(ctx, deltas); err != nil {
		attempted := make(map[string]int, len(deltas))
		for _, d := range deltas {
			attempted[d.ItemID] += d.Delta
		}
		log.WithError(err).WithField("deltas", attempted).Error("stock not updated for committed transaction, reconcile inventory manually")
		e.events.emit(ctx, models.StockSyncFailed{
			TransactionID: tx.ID,
			Deltas:        attempted,
			Error:         err.Error(),
			At:            e.now(),
		})
		cart.Clear()
		return tx, &PartialStockSyncError{TransactionID: tx.ID, Deltas: attempted, Err: err}
	}

	cart.Clear()
	return tx, nil
}

// Transactions returns every stored sale, oldest first.
func (e *Engine) Transactions(ctx context.Context) ([]models.Transaction, error) {
	snap, err := e.store.Read(ctx, store.Transactions)
	if err != nil {
		return nil, err
	}
	return decodeTransactions(snap.Docs)
}
