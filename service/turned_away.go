package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"airshow-pos/models"
	"airshow-pos/store"
)

// TurnedAwayLog records visitors who left without buying.
type TurnedAwayLog struct {
	store  store.Store
	log    logrus.FieldLogger
	events emitter
	now    func() time.Time
}

// Record stores reason as given. A blank reason is accepted and reported as Unknown.
func (l *TurnedAwayLog) Record(ctx context.Context, reason string) (models.TurnedAwayEntry, error) {
	entry := models.TurnedAwayEntry{
		Reason: strings.TrimSpace(reason),
		Stamp:  models.NewStamp(l.now()),
	}
	doc, err := json.Marshal(entry)
	if err != nil {
		return models.TurnedAwayEntry{}, &store.PersistenceError{Op: "encode", Collection: store.TurnedAway, Err: err}
	}
	key, err := l.store.Push(ctx, store.TurnedAway, doc)
	if err != nil {
		return models.TurnedAwayEntry{}, err
	}
	entry.ID = key
	l.log.WithFields(logrus.Fields{"entry_id": key, "reason": entry.DisplayReason()}).Info("turned away recorded")
	l.events.emit(ctx, models.TurnedAwayRecorded{EntryID: key, Reason: entry.Reason, At: entry.Timestamp})
	return entry, nil
}

// RecordCustom requires a reason and appends notes when present.
func (l *TurnedAwayLog) RecordCustom(ctx context.Context, reason, notes string) (models.TurnedAwayEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.TurnedAwayEntry{}, invalid("reason", "is required")
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		reason += " | Notes: " + notes
	}
	return l.Record(ctx, reason)
}

// Entries returns every entry, oldest first.
func (l *TurnedAwayLog) Entries(ctx context.Context) ([]models.TurnedAwayEntry, error) {
	snap, err := l.store.Read(ctx, store.TurnedAway)
	if err != nil {
		return nil, err
	}
	return decodeTurnedAway(snap.Docs)
}

// Today returns today's entries, most recent first.
func (l *TurnedAwayLog) Today(ctx context.Context) ([]models.TurnedAwayEntry, error) {
	all, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	today := l.now().Format(models.DateLayout)
	var out []models.TurnedAwayEntry
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Date == today {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// MostCommonReason returns the most frequent display reason among entries
// and its count. Ties go to the alphabetically first reason.
func MostCommonReason(entries []models.TurnedAwayEntry) (string, int) {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.DisplayReason()]++
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	best, n := "", 0
	for _, r := range reasons {
		if counts[r] > n {
			best, n = r, counts[r]
		}
	}
	return best, n
}
