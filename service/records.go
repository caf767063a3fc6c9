package service

import (
	"encoding/json"
	"sort"

	"airshow-pos/models"
	"airshow-pos/store"
)

// Stored documents may predate the "id" field; the mapping key is authoritative.

func decodeItems(docs store.Collection) (map[string]*models.InventoryItem, error) {
	items := make(map[string]*models.InventoryItem, len(docs))
	for key, raw := range docs {
		var item models.InventoryItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &store.PersistenceError{Op: "decode", Collection: store.Inventory, Key: key, Err: err}
		}
		item.ID = key
		items[key] = &item
	}
	return items, nil
}

func encodeItems(items map[string]*models.InventoryItem) (store.Collection, error) {
	docs := make(store.Collection, len(items))
	for key, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, &store.PersistenceError{Op: "encode", Collection: store.Inventory, Key: key, Err: err}
		}
		docs[key] = raw
	}
	return docs, nil
}

func decodeTransactions(docs store.Collection) ([]models.Transaction, error) {
	out := make([]models.Transaction, 0, len(docs))
	for key, raw := range docs {
		var tx models.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, &store.PersistenceError{Op: "decode", Collection: store.Transactions, Key: key, Err: err}
		}
		if tx.ID == "" {
			tx.ID = key
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return stampLess(out[i].Stamp, out[j].Stamp, out[i].ID, out[j].ID) })
	return out, nil
}

func decodeTurnedAway(docs store.Collection) ([]models.TurnedAwayEntry, error) {
	out := make([]models.TurnedAwayEntry, 0, len(docs))
	for key, raw := range docs {
		var entry models.TurnedAwayEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, &store.PersistenceError{Op: "decode", Collection: store.TurnedAway, Key: key, Err: err}
		}
		if entry.ID == "" {
			entry.ID = key
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return stampLess(out[i].Stamp, out[j].Stamp, out[i].ID, out[j].ID) })
	return out, nil
}

// stampLess orders oldest first. Legacy records may lack a timestamp, so the
// date and time strings break ties before the id does.
func stampLess(a, b models.Stamp, aID, bID string) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return aID < bID
}

func sortItems(items []models.InventoryItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
}
