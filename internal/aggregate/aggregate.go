// Package aggregate derives chart-ready views from transaction snapshots.
// Everything here is deterministic and keeps no state between calls.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/shopspring/decimal"
)

const dateKeyLayout = "2006-01-02"

// DailyPoint is one entry of the line chart series
type DailyPoint struct {
	DateKey     string               `json:"dateKey"`
	Label       string               `json:"label"`
	TotalAmount decimal.Decimal      `json:"totalAmount"`
	Items       []domain.Transaction `json:"items"`
}

// Slice is one wedge of the financial overview pie chart
type Slice struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Pie slice names
const (
	SliceBalance = "Total Balance"
	SliceExpense = "Total Expense"
	SliceIncome  = "Total Income"
)

// DailySeries groups transactions by calendar day and sums their amounts.
// Only the date portion of Date is used; time of day and offset are dropped.
// Transactions whose date cannot be read are left out. Output is ascending by DateKey.
func DailySeries(transactions []domain.Transaction) []DailyPoint {
	byKey := make(map[string]*DailyPoint)
	keys := make([]string, 0)

	for _, tx := range transactions {
		day, ok := calendarDay(tx.Date)
		if !ok {
			continue
		}
		key := day.Format(dateKeyLayout)

		point, exists := byKey[key]
		if !exists {
			point = &DailyPoint{
				DateKey:     key,
				Label:       DayLabel(day),
				TotalAmount: decimal.Zero,
				Items:       make([]domain.Transaction, 0, 1),
			}
			byKey[key] = point
			keys = append(keys, key)
		}
		point.TotalAmount = point.TotalAmount.Add(tx.Amount)
		point.Items = append(point.Items, tx)
	}

	sort.Strings(keys)

	series := make([]DailyPoint, 0, len(keys))
	for _, key := range keys {
		series = append(series, *byKey[key])
	}
	return series
}

// CategoricalSplit builds the three fixed pie slices. Values pass through untouched.
func CategoricalSplit(totalBalance, totalIncome, totalExpense decimal.Decimal) []Slice {
	return []Slice{
		{Name: SliceBalance, Amount: totalBalance},
		{Name: SliceExpense, Amount: totalExpense},
		{Name: SliceIncome, Amount: totalIncome},
	}
}

// TopN returns at most the first n items in the order received
func TopN[T any](items []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	if len(items) < n {
		n = len(items)
	}
	out := make([]T, n)
	copy(out, items[:n])
	return out
}

// DayLabel formats t as day-of-month with ordinal suffix and short month, e.g. "3rd Jun"
func DayLabel(t time.Time) string {
	day := t.Day()
	return fmt.Sprintf("%d%s %s", day, OrdinalSuffix(day), t.Format("Jan"))
}

// OrdinalSuffix returns st, nd, rd or th for a day of month
func OrdinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// calendarDay reads the leading YYYY-MM-DD of an ISO date or date-time
func calendarDay(raw string) (time.Time, bool) {
	if len(raw) < len(dateKeyLayout) {
		return time.Time{}, false
	}
	day, err := time.Parse(dateKeyLayout, raw[:len(dateKeyLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
