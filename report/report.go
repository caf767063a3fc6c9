// Package report derives read-only views over the stored collections:
// summaries, statistics and the spreadsheet export.
package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"airshow-pos/models"
)

// Source is read access to the three collections.
type Source interface {
	Items(ctx context.Context) ([]models.InventoryItem, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
	TurnedAway(ctx context.Context) ([]models.TurnedAwayEntry, error)
}

// DateRange is an inclusive range of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func NewDateRange(start, end string) (DateRange, error) {
	s, err := models.ParseDate(start)
	if err != nil {
		return DateRange{}, errors.Wrap(err, "start date")
	}
	e, err := models.ParseDate(end)
	if err != nil {
		return DateRange{}, errors.Wrap(err, "end date")
	}
	if e.Before(s) {
		return DateRange{}, errors.Errorf("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: start, End: end}, nil
}

// Today is the single day containing now.
func Today(now time.Time) DateRange {
	d := now.Format(models.DateLayout)
	return DateRange{Start: d, End: d}
}

// ThisWeek runs from the Monday of now's week through now.
func ThisWeek(now time.Time) DateRange {
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset)
	return DateRange{Start: monday.Format(models.DateLayout), End: now.Format(models.DateLayout)}
}

// Contains compares dates as strings; YYYY-MM-DD sorts chronologically.
func (r DateRange) Contains(date string) bool {
	return date >= r.Start && date <= r.End
}

func (r DateRange) String() string { return r.Start + " to " + r.End }

// Data is one consistent load of the collections for a range. Items are
// never filtered; transactions and turned-away entries are.
type Data struct {
	Range        DateRange
	Items        []models.InventoryItem
	Transactions []models.Transaction
	TurnedAway   []models.TurnedAwayEntry
}

// Load reads the three collections concurrently and filters them to r.
func Load(ctx context.Context, src Source, r DateRange) (*Data, error) {
	var (
		items []models.InventoryItem
		txs   []models.Transaction
		ta    []models.TurnedAwayEntry
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = src.Items(ctx)
		return errors.Wrap(err, "load inventory")
	})
	g.Go(func() error {
		var err error
		txs, err = src.Transactions(ctx)
		return errors.Wrap(err, "load transactions")
	})
	g.Go(func() error {
		var err error
		ta, err = src.TurnedAway(ctx)
		return errors.Wrap(err, "load turned away")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Data{Range: r, Items: items}
	for _, tx := range txs {
		if r.Contains(tx.Date) {
			d.Transactions = append(d.Transactions, tx)
		}
	}
	for _, e := range ta {
		if r.Contains(e.Date) {
			d.TurnedAway = append(d.TurnedAway, e)
		}
	}
	return d, nil
}
