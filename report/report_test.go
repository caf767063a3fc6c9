package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"airshow-pos/models"
)

type staticSource struct {
	items []models.InventoryItem
	txs   []models.Transaction
	ta    []models.TurnedAwayEntry
	err   error
}

func (s staticSource) Items(context.Context) ([]models.InventoryItem, error) { return s.items, s.err }
func (s staticSource) Transactions(context.Context) ([]models.Transaction, error) {
	return s.txs, nil
}
func (s staticSource) TurnedAway(context.Context) ([]models.TurnedAwayEntry, error) {
	return s.ta, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sale(id, date, clock string, method models.PaymentMethod, lines ...models.Line) models.Transaction {
	tx := models.Transaction{ID: id, Lines: lines, Payment: models.Payment{Method: method}, Stamp: models.Stamp{Date: date, Time: clock}}
	tx.Total = decimal.Zero
	for _, l := range lines {
		tx.Total = tx.Total.Add(l.Subtotal())
	}
	return tx
}

func fixtureSource() staticSource {
	return staticSource{
		items: []models.InventoryItem{
			{ID: "hat", Name: "Hat", Category: models.CategoryApparel, Price: dec("20"), Stock: 3, Active: true},
			{ID: "kit", Name: "Kit", Category: models.CategoryModels, Price: dec("35.50"), Stock: 2, Active: true},
			{ID: "old", Name: "Old", Category: models.CategoryBooks, Price: dec("100"), Stock: 9, Active: false},
		},
		txs: []models.Transaction{
			sale("t0", "2024-06-09", "10:00:00", models.PaymentCash, models.Line{ItemID: "hat", Name: "Hat", UnitPrice: dec("20"), Quantity: 1}),
			sale("t1", "2024-06-10", "10:00:00", models.PaymentCash, models.Line{ItemID: "hat", Name: "Hat", UnitPrice: dec("20"), Quantity: 2}),
			sale("t2", "2024-06-12", "11:00:00", models.PaymentZelle,
				models.Line{ItemID: "kit", Name: "Kit", UnitPrice: dec("35.50"), Quantity: 1},
				models.Line{ItemID: "gone", Name: "Gone", UnitPrice: dec("4.50"), Quantity: 1}),
			sale("t3", "2024-06-16", "12:00:00", models.PaymentCash, models.Line{ItemID: "hat", Name: "Hat", UnitPrice: dec("20"), Quantity: 1}),
			sale("t4", "2024-06-17", "12:00:00", models.PaymentCash, models.Line{ItemID: "hat", Name: "Hat", UnitPrice: dec("20"), Quantity: 1}),
		},
		ta: []models.TurnedAwayEntry{
			{ID: "a", Reason: models.ReasonTooExpensive, Stamp: models.Stamp{Date: "2024-06-10", Time: "14:05:00"}},
			{ID: "b", Reason: "Wrong payment type | Notes: only had a card", Stamp: models.Stamp{Date: "2024-06-10", Time: "14:40:00"}},
			{ID: "c", Reason: "", Stamp: models.Stamp{Date: "2024-06-16", Time: "09:00:00"}},
			{ID: "d", Reason: models.ReasonTooExpensive, Stamp: models.Stamp{Date: "2024-06-09", Time: "14:00:00"}},
		},
	}
}

func TestDateRangeBoundariesAreInclusive(t *testing.T) {
	r, err := NewDateRange("2024-06-10", "2024-06-16")
	require.NoError(t, err)

	assert.True(t, r.Contains("2024-06-10"))
	assert.True(t, r.Contains("2024-06-16"))
	assert.False(t, r.Contains("2024-06-09"))
	assert.False(t, r.Contains("2024-06-17"))

	d, err := Load(context.Background(), fixtureSource(), r)
	require.NoError(t, err)
	ids := []string{}
	for _, tx := range d.Transactions {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids)
	assert.Len(t, d.TurnedAway, 3)
	assert.Len(t, d.Items, 3, "items are not date filtered")
}

func TestNewDateRangeValidation(t *testing.T) {
	_, err := NewDateRange("2024-06-10", "2024-06-09")
	assert.Error(t, err)
	_, err = NewDateRange("june", "2024-06-09")
	assert.Error(t, err)
}

func TestQuickRanges(t *testing.T) {
	wed := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, DateRange{Start: "2024-06-12", End: "2024-06-12"}, Today(wed))
	assert.Equal(t, DateRange{Start: "2024-06-10", End: "2024-06-12"}, ThisWeek(wed))

	sun := time.Date(2024, 6, 16, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, DateRange{Start: "2024-06-10", End: "2024-06-16"}, ThisWeek(sun))

	mon := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, DateRange{Start: "2024-06-10", End: "2024-06-10"}, ThisWeek(mon))
}

func TestLoadPropagatesErrors(t *testing.T) {
	src := fixtureSource()
	src.err = errors.New("disk gone")
	_, err := Load(context.Background(), src, DateRange{Start: "2024-06-10", End: "2024-06-16"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load inventory")
}

func loadFixture(t *testing.T) *Data {
	t.Helper()
	d, err := Load(context.Background(), fixtureSource(), DateRange{Start: "2024-06-10", End: "2024-06-16"})
	require.NoError(t, err)
	return d
}

func TestSummarize(t *testing.T) {
	s := Summarize(loadFixture(t))

	assert.Equal(t, 3, s.TransactionCount)
	assert.Equal(t, "100.00", s.TotalRevenue.StringFixed(2))
	assert.Equal(t, "33.33", s.AverageTransaction.StringFixed(2))
	assert.Equal(t, 3, s.TurnedAwayCount)
	assert.Equal(t, 2, s.ActiveItems)
	// 20×3 + 35.50×2; the inactive item is excluded
	assert.Equal(t, "131.00", s.InventoryValue.StringFixed(2))

	empty := Summarize(&Data{})
	assert.True(t, empty.AverageTransaction.IsZero())
}

func TestTurnedAwayStats(t *testing.T) {
	st := TurnedAway(loadFixture(t))

	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.WrongPayment)
	assert.Equal(t, 14, st.PeakHour)
	assert.Equal(t, 2, st.PeakHourCount)
	assert.Equal(t, []Count{{"2024-06-10", 2}, {"2024-06-16", 1}}, st.Daily)
	require.Len(t, st.Reasons, 3)
	assert.Contains(t, st.Reasons, Count{Key: models.ReasonUnknown, Count: 1})

	assert.Equal(t, -1, TurnedAway(&Data{}).PeakHour)
}

func TestSalesStats(t *testing.T) {
	st := Sales(loadFixture(t))

	assert.Equal(t, 5, st.ItemsSold)
	require.Len(t, st.Daily, 3)
	assert.Equal(t, "2024-06-10", st.Daily[0].Date)
	assert.Equal(t, "40.00", st.Daily[0].Revenue.StringFixed(2))

	require.Len(t, st.Payments, 2)
	assert.Equal(t, models.PaymentCash, st.Payments[0].Method)
	assert.Equal(t, 2, st.Payments[0].Count)
	assert.Equal(t, "66.7", st.Payments[0].Percentage.StringFixed(1))
	assert.Equal(t, "33.3", st.Payments[1].Percentage.StringFixed(1))

	require.Len(t, st.Categories, 3)
	assert.Equal(t, models.CategoryApparel, st.Categories[0].Category)
	assert.Equal(t, 3, st.Categories[0].Quantity)
	assert.Equal(t, models.CategoryModels, st.Categories[1].Category)
	assert.Equal(t, models.CategoryOther, st.Categories[2].Category, "lines for removed items count as Other")
	assert.Equal(t, "4.50", st.Categories[2].Revenue.StringFixed(2))

	assert.Equal(t, "1.3", st.AvgItemsPerTransaction.StringFixed(1))
	assert.Equal(t, "1.7", st.AvgQuantityPerTransaction.StringFixed(1))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "airshow_data_2024-06-10_2024-06-16.xlsx", Filename(DateRange{Start: "2024-06-10", End: "2024-06-16"}))
	assert.Equal(t, "a_b_c.xlsx", SanitizeFilename(`_a<>b??c_.xlsx`))
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	generated := time.Date(2024, 6, 16, 18, 0, 0, 0, time.UTC)
	require.NoError(t, WriteWorkbook(&buf, loadFixture(t), AllSheets(), generated))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetTransactions, SheetTurnedAway, SheetInventory, SheetSummary, SheetTurnedAwayStats}, f.GetSheetList())

	rows, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, transactionHeader, rows[0])
	assert.Equal(t, "t2", rows[2][0])
	assert.Equal(t, "$40.00", rows[2][3])
	assert.Equal(t, "Kit x1 @ $35.50; Gone x1 @ $4.50", rows[2][7])

	rows, err = f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Contains(t, rows, []string{"Total Revenue", "$100.00"})
	assert.Contains(t, rows, []string{"Total Inventory Value", "$131.00"})
	assert.Contains(t, rows, []string{"Report Generated", "2024-06-16 18:00:00"})

	rows, err = f.GetRows(SheetTurnedAwayStats)
	require.NoError(t, err)
	assert.Contains(t, rows, []string{"Peak Hour", "14:00 (2)"})
}

func TestWriteWorkbookEmptySheetsKeepHeaders(t *testing.T) {
	var buf bytes.Buffer
	d := &Data{Range: DateRange{Start: "2024-01-01", End: "2024-01-01"}}
	require.NoError(t, WriteWorkbook(&buf, d, ExportOptions{TurnedAway: true}, time.Now()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetTurnedAway, SheetSummary, SheetTurnedAwayStats}, f.GetSheetList())
	rows, err := f.GetRows(SheetTurnedAway)
	require.NoError(t, err)
	assert.Equal(t, [][]string{turnedAwayHeader}, rows)
}
