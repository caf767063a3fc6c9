package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airshow-pos/models"
	"airshow-pos/store"
)

func TestRecordToleratesBlankReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.RecordTurnedAway(ctx, "   ")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "", entry.Reason)
	assert.Equal(t, models.ReasonUnknown, entry.DisplayReason())

	all, err := f.svc.TurnedAway(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entry.ID, all[0].ID)
	assert.Equal(t, "2024-06-15", all[0].Date)
	assert.Contains(t, f.events.Types(), "turned_away.recorded")
}

func TestRecordCustom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordCustomTurnedAway(ctx, " ", "wanted a kids size")
	assert.True(t, IsValidation(err))

	entry, err := f.svc.RecordCustomTurnedAway(ctx, "Size unavailable", " wanted a kids size ")
	require.NoError(t, err)
	assert.Equal(t, "Size unavailable | Notes: wanted a kids size", entry.Reason)

	entry, err = f.svc.RecordCustomTurnedAway(ctx, "Wrong payment type", "")
	require.NoError(t, err)
	assert.Equal(t, "Wrong payment type", entry.Reason)
}

func TestRecordPushFailure(t *testing.T) {
	f := newFixture(t)
	f.store.PushFn = func(_ context.Context, collection string, _ json.RawMessage) (string, error) {
		return "", &store.PersistenceError{Op: "push", Collection: collection, Err: errors.New("offline")}
	}

	_, err := f.svc.RecordTurnedAway(context.Background(), models.ReasonTooExpensive)
	var pe *store.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, store.TurnedAway, pe.Collection)
}

func TestTurnedAwayTodayMostRecentFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	clock := testNow.Add(-24 * time.Hour)
	f.svc.turnedAway.now = func() time.Time { return clock }
	_, err := f.svc.RecordTurnedAway(ctx, models.ReasonNoTime)
	require.NoError(t, err)

	clock = testNow.Add(-time.Hour)
	early, err := f.svc.RecordTurnedAway(ctx, models.ReasonTooExpensive)
	require.NoError(t, err)
	clock = testNow
	late, err := f.svc.RecordTurnedAway(ctx, models.ReasonJustLooking)
	require.NoError(t, err)

	today, err := f.svc.TurnedAwayToday(ctx)
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, late.ID, today[0].ID)
	assert.Equal(t, early.ID, today[1].ID)
}

func TestMostCommonReason(t *testing.T) {
	entries := []models.TurnedAwayEntry{
		{Reason: models.ReasonTooExpensive},
		{Reason: ""},
		{Reason: models.ReasonTooExpensive},
		{Reason: " "},
		{Reason: models.ReasonJustLooking},
	}
	reason, n := MostCommonReason(entries)
	assert.Equal(t, models.ReasonTooExpensive, reason)
	assert.Equal(t, 2, n)

	reason, n = MostCommonReason(nil)
	assert.Equal(t, "", reason)
	assert.Zero(t, n)
}
