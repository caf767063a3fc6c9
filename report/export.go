package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"airshow-pos/models"
)

const (
	SheetTransactions    = "Transactions"
	SheetTurnedAway      = "Turned Away"
	SheetInventory       = "Inventory"
	SheetSummary         = "Summary"
	SheetTurnedAwayStats = "Turned Away Stats"
)

var (
	transactionHeader = []string{"Transaction ID", "Date", "Time", "Total", "Payment Method",
		"Confirmation Number", "Customer Notes", "Items", "Item Count", "Timestamp"}
	turnedAwayHeader = []string{"Date", "Time", "Reason", "Timestamp"}
	inventoryHeader  = []string{"Item ID", "Name", "Category", "Price", "Stock", "SKU",
		"Description", "Status", "Created", "Updated"}
)

// ExportOptions selects the optional sheets. Summary and Turned Away Stats are always written.
type ExportOptions struct {
	Transactions bool
	TurnedAway   bool
	Inventory    bool
}

func AllSheets() ExportOptions {
	return ExportOptions{Transactions: true, TurnedAway: true, Inventory: true}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedUnderscores = regexp.MustCompile(`_+`)
)

// SanitizeFilename replaces characters that are not allowed in file names.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = repeatedUnderscores.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// Filename is the download name of a workbook for r.
func Filename(r DateRange) string {
	return SanitizeFilename(fmt.Sprintf("airshow_data_%s_%s.xlsx", r.Start, r.End))
}

func money(d decimal.Decimal) string { return "$" + d.StringFixed(2) }

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// WriteWorkbook renders d as an xlsx workbook to w. Empty sheets keep their header row.
func WriteWorkbook(w io.Writer, d *Data, opts ExportOptions, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	b := &workbook{f: f}
	if b.header, b.err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); b.err != nil {
		return errors.Wrap(b.err, "create header style")
	}

	if opts.Transactions {
		b.sheet(SheetTransactions, transactionHeader, transactionRows(d.Transactions))
	}
	if opts.TurnedAway {
		b.sheet(SheetTurnedAway, turnedAwayHeader, turnedAwayRows(d.TurnedAway))
	}
	if opts.Inventory {
		b.sheet(SheetInventory, inventoryHeader, inventoryRows(d.Items))
	}
	b.sheet(SheetSummary, []string{"Metric", "Value"}, summaryRows(Summarize(d), generatedAt))
	b.sheet(SheetTurnedAwayStats, []string{"Metric", "Value"}, turnedAwayStatRows(TurnedAway(d)))
	if b.err != nil {
		return b.err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

type workbook struct {
	f      *excelize.File
	header int
	sheets int
	err    error
}

func (b *workbook) sheet(name string, header []string, rows [][]any) {
	if b.err != nil {
		return
	}
	// NewFile starts with one default sheet; the first sheet we write takes it over.
	if b.sheets == 0 {
		b.err = b.f.SetSheetName(b.f.GetSheetName(0), name)
	} else {
		_, b.err = b.f.NewSheet(name)
	}
	if b.err != nil {
		b.err = errors.Wrapf(b.err, "create sheet %q", name)
		return
	}
	b.sheets++

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	b.row(name, 1, head)
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err == nil {
		err = b.f.SetCellStyle(name, "A1", last, b.header)
	}
	if err != nil && b.err == nil {
		b.err = errors.Wrapf(err, "style header of %q", name)
	}
	for i, r := range rows {
		b.row(name, i+2, r)
	}
}

func (b *workbook) row(sheet string, n int, values []any) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err == nil {
		err = b.f.SetSheetRow(sheet, cell, &values)
	}
	if err != nil {
		b.err = errors.Wrapf(err, "write %q row %d", sheet, n)
	}
}

func transactionRows(txs []models.Transaction) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		items := make([]string, 0, len(tx.Lines))
		for _, l := range tx.Lines {
			items = append(items, fmt.Sprintf("%s x%d @ %s", l.Name, l.Quantity, money(l.UnitPrice)))
		}
		rows = append(rows, []any{
			tx.ID, tx.Date, tx.Time, money(tx.Total), tx.Payment.String(),
			tx.Payment.ConfirmationNumber, tx.CustomerNotes, strings.Join(items, "; "),
			tx.ItemCount(), timestamp(tx.Timestamp),
		})
	}
	return rows
}

func turnedAwayRows(entries []models.TurnedAwayEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.Date, e.Time, e.Reason, timestamp(e.Timestamp)})
	}
	return rows
}

func inventoryRows(items []models.InventoryItem) [][]any {
	day := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(models.DateLayout)
	}
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		status := "Active"
		if !item.Active {
			status = "Inactive"
		}
		rows = append(rows, []any{
			item.ID, item.Name, string(item.Category), money(item.Price), item.Stock, item.SKU,
			item.Description, status, day(item.CreatedAt), day(item.UpdatedAt),
		})
	}
	return rows
}

func summaryRows(s Summary, generatedAt time.Time) [][]any {
	return [][]any{
		{"Report Generated", generatedAt.Format("2006-01-02 15:04:05")},
		{"Date Range", s.Range.String()},
		{"", ""},
		{"SALES SUMMARY", ""},
		{"Total Transactions", s.TransactionCount},
		{"Total Revenue", money(s.TotalRevenue)},
		{"Average Transaction", money(s.AverageTransaction)},
		{"", ""},
		{"TURNED AWAY SUMMARY", ""},
		{"Total Turned Away", s.TurnedAwayCount},
		{"", ""},
		{"INVENTORY SUMMARY", ""},
		{"Active Items", s.ActiveItems},
		{"Total Inventory Value", money(s.InventoryValue)},
	}
}

func turnedAwayStatRows(st TurnedAwayStats) [][]any {
	peak := "n/a"
	if st.PeakHour >= 0 {
		peak = fmt.Sprintf("%02d:00 (%d)", st.PeakHour, st.PeakHourCount)
	}
	rows := [][]any{
		{"Total Turned Away", st.Total},
		{"Wrong Payment Type", st.WrongPayment},
		{"Peak Hour", peak},
		{"", ""},
		{"BY REASON", ""},
	}
	for _, c := range st.Reasons {
		rows = append(rows, []any{c.Key, c.Count})
	}
	rows = append(rows, []any{"", ""}, []any{"BY DAY", ""})
	for _, c := range st.Daily {
		rows = append(rows, []any{c.Key, c.Count})
	}
	return rows
}
