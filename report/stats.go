package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"airshow-pos/models"
)

// Summary holds the headline figures for a range.
type Summary struct {
	Range              DateRange       `json:"range"`
	TransactionCount   int             `json:"transaction_count"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
	TurnedAwayCount    int             `json:"turned_away_count"`
	ActiveItems        int             `json:"active_items"`
	InventoryValue     decimal.Decimal `json:"inventory_value"`
}

func Summarize(d *Data) Summary {
	s := Summary{
		Range:              d.Range,
		TransactionCount:   len(d.Transactions),
		TotalRevenue:       decimal.Zero,
		AverageTransaction: decimal.Zero,
		TurnedAwayCount:    len(d.TurnedAway),
		InventoryValue:     decimal.Zero,
	}
	for _, tx := range d.Transactions {
		s.TotalRevenue = s.TotalRevenue.Add(tx.Total)
	}
	if s.TransactionCount > 0 {
		s.AverageTransaction = s.TotalRevenue.Div(decimal.NewFromInt(int64(s.TransactionCount))).Round(2)
	}
	for _, item := range d.Items {
		if !item.Active {
			continue
		}
		s.ActiveItems++
		s.InventoryValue = s.InventoryValue.Add(item.StockValue())
	}
	return s
}

// Count is one bucket of a histogram.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type TurnedAwayStats struct {
	Total int `json:"total"`
	// Reasons is ordered by count, highest first.
	Reasons []Count `json:"reasons"`
	// Daily is ordered by date.
	Daily []Count `json:"daily"`
	// PeakHour is -1 when no entry has a readable time.
	PeakHour      int `json:"peak_hour"`
	PeakHourCount int `json:"peak_hour_count"`
	WrongPayment  int `json:"wrong_payment"`
}

func TurnedAway(d *Data) TurnedAwayStats {
	reasons := map[string]int{}
	daily := map[string]int{}
	hours := map[int]int{}
	st := TurnedAwayStats{Total: len(d.TurnedAway), PeakHour: -1}
	for _, e := range d.TurnedAway {
		reason := e.DisplayReason()
		reasons[reason]++
		if e.Date != "" {
			daily[e.Date]++
		}
		if h := e.Hour(); h >= 0 {
			hours[h]++
		}
		if strings.Contains(strings.ToLower(reason), "wrong payment") {
			st.WrongPayment++
		}
	}
	st.Reasons = byCount(reasons)
	st.Daily = byKey(daily)
	for h := 0; h < 24; h++ {
		if hours[h] > st.PeakHourCount {
			st.PeakHour, st.PeakHourCount = h, hours[h]
		}
	}
	return st
}

type DailySales struct {
	Date         string          `json:"date"`
	Transactions int             `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type PaymentShare struct {
	Method     models.PaymentMethod `json:"method"`
	Count      int                  `json:"count"`
	Percentage decimal.Decimal      `json:"percentage"`
}

type CategorySales struct {
	Category models.Category `json:"category"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type SalesStats struct {
	Daily                     []DailySales    `json:"daily"`
	Payments                  []PaymentShare  `json:"payments"`
	Categories                []CategorySales `json:"categories"`
	ItemsSold                 int             `json:"items_sold"`
	AvgItemsPerTransaction    decimal.Decimal `json:"avg_items_per_transaction"`
	AvgQuantityPerTransaction decimal.Decimal `json:"avg_quantity_per_transaction"`
}

// Sales breaks the range's transactions down by day, tender and category.
// Categories come from the current catalog; lines whose item is gone count as Other.
func Sales(d *Data) SalesStats {
	categoryOf := make(map[string]models.Category, len(d.Items))
	for _, item := range d.Items {
		categoryOf[item.ID] = item.Category
	}

	days := map[string]*DailySales{}
	payments := map[string]int{}
	categories := map[models.Category]*CategorySales{}
	st := SalesStats{AvgItemsPerTransaction: decimal.Zero, AvgQuantityPerTransaction: decimal.Zero}
	var lines int

	for _, tx := range d.Transactions {
		day, ok := days[tx.Date]
		if !ok {
			day = &DailySales{Date: tx.Date, Revenue: decimal.Zero}
			days[tx.Date] = day
		}
		day.Transactions++
		day.Revenue = day.Revenue.Add(tx.Total)

		method := string(tx.Payment.Method)
		if method == "" {
			method = models.ReasonUnknown
		}
		payments[method]++

		lines += tx.ItemCount()
		st.ItemsSold += tx.Quantity()
		for _, l := range tx.Lines {
			cat, ok := categoryOf[l.ItemID]
			if !ok || cat == "" {
				cat = models.CategoryOther
			}
			cs, ok := categories[cat]
			if !ok {
				cs = &CategorySales{Category: cat, Revenue: decimal.Zero}
				categories[cat] = cs
			}
			cs.Quantity += l.Quantity
			cs.Revenue = cs.Revenue.Add(l.Subtotal())
		}
	}

	for _, day := range days {
		st.Daily = append(st.Daily, *day)
	}
	sort.Slice(st.Daily, func(i, j int) bool { return st.Daily[i].Date < st.Daily[j].Date })

	total := decimal.NewFromInt(int64(len(d.Transactions)))
	for _, c := range byCount(payments) {
		st.Payments = append(st.Payments, PaymentShare{
			Method:     models.PaymentMethod(c.Key),
			Count:      c.Count,
			Percentage: decimal.NewFromInt(int64(c.Count * 100)).Div(total).Round(1),
		})
	}

	for _, cs := range categories {
		st.Categories = append(st.Categories, *cs)
	}
	sort.Slice(st.Categories, func(i, j int) bool {
		ri, rj := categoryRank(st.Categories[i].Category), categoryRank(st.Categories[j].Category)
		if ri != rj {
			return ri < rj
		}
		return st.Categories[i].Category < st.Categories[j].Category
	})

	if n := len(d.Transactions); n > 0 {
		st.AvgItemsPerTransaction = decimal.NewFromInt(int64(lines)).Div(total).Round(1)
		st.AvgQuantityPerTransaction = decimal.NewFromInt(int64(st.ItemsSold)).Div(total).Round(1)
	}
	return st
}

// categoryRank keeps the fixed categories in menu order ahead of free-form ones.
func categoryRank(c models.Category) int {
	for i, k := range models.Categories {
		if c == k {
			return i
		}
	}
	return len(models.Categories)
}

func byCount(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func byKey(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
