package services

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/finance-tracker/models"
)

// Aggregations are pure: they never modify their input slices.

// OtherCategory collects records without a category.
const OtherCategory = "Other"

type Tab string

const (
	TabAll     Tab = "all"
	TabIncome  Tab = "income"
	TabExpense Tab = "expense"
)

func (t Tab) Valid() bool {
	return t == TabAll || t == TabIncome || t == TabExpense
}

type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type DailyRow struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals sums amounts by kind. Net is income minus expense.
func ComputeTotals(list []models.Transaction) Totals {
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range list {
		switch tx.Kind {
		case models.KindIncome:
			t.Income = t.Income.Add(tx.Amount)
		case models.KindExpense:
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Net = t.Income.Sub(t.Expense)
	return t
}

func FilterByTab(list []models.Transaction, tab Tab) []models.Transaction {
	if tab == TabAll || tab == "" {
		return filter(list, func(models.Transaction) bool { return true })
	}
	return filter(list, func(tx models.Transaction) bool { return string(tx.Kind) == string(tab) })
}

// TextFilter keeps records whose "category note date" contains query, case-insensitively.
func TextFilter(list []models.Transaction, query string) []models.Transaction {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return filter(list, func(models.Transaction) bool { return true })
	}
	return filter(list, func(tx models.Transaction) bool {
		hay := strings.ToLower(tx.Category + " " + tx.Note + " " + tx.Date)
		return strings.Contains(hay, q)
	})
}

// MonthSlice keeps records dated within month (YYYY-MM).
func MonthSlice(list []models.Transaction, month string) []models.Transaction {
	return filter(list, func(tx models.Transaction) bool {
		return len(tx.Date) >= 7 && tx.Date[:7] == month
	})
}

// VisibleItems is what the table shows: the tab filter, then the text filter.
func VisibleItems(list []models.Transaction, tab Tab, query string) []models.Transaction {
	return TextFilter(FilterByTab(list, tab), query)
}

// DailySeries returns one row per date, ascending. Records without a date are skipped.
func DailySeries(monthItems []models.Transaction) []DailyRow {
	byDate := make(map[string]*DailyRow)
	for _, tx := range monthItems {
		if tx.Date == "" {
			continue
		}
		row, ok := byDate[tx.Date]
		if !ok {
			row = &DailyRow{Date: tx.Date, Income: decimal.Zero, Expense: decimal.Zero}
			byDate[tx.Date] = row
		}
		switch tx.Kind {
		case models.KindIncome:
			row.Income = row.Income.Add(tx.Amount)
		case models.KindExpense:
			row.Expense = row.Expense.Add(tx.Amount)
		}
	}

	rows := make([]DailyRow, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

// CategoryBreakdown totals kind's amounts per category, largest first.
func CategoryBreakdown(monthItems []models.Transaction, kind models.Kind) []CategoryTotal {
	byCat := make(map[string]decimal.Decimal)
	for _, tx := range monthItems {
		if tx.Kind != kind {
			continue
		}
		cat := tx.Category
		if cat == "" {
			cat = OtherCategory
		}
		byCat[cat] = byCat[cat].Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for cat, total := range byCat {
		out = append(out, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Summary bundles every aggregate the dashboard and the report need for one month.
type Summary struct {
	Month             string          `json:"month"`
	Totals            Totals          `json:"totals"`
	MonthTotals       Totals          `json:"monthTotals"`
	Daily             []DailyRow      `json:"daily"`
	ExpenseByCategory []CategoryTotal `json:"expenseByCategory"`
	IncomeByCategory  []CategoryTotal `json:"incomeByCategory"`
	Count             int             `json:"count"`
}

func Summarize(list []models.Transaction, month string) Summary {
	monthItems := MonthSlice(list, month)
	return Summary{
		Month:             month,
		Totals:            ComputeTotals(list),
		MonthTotals:       ComputeTotals(monthItems),
		Daily:             DailySeries(monthItems),
		ExpenseByCategory: CategoryBreakdown(monthItems, models.KindExpense),
		IncomeByCategory:  CategoryBreakdown(monthItems, models.KindIncome),
		Count:             len(monthItems),
	}
}

func filter(list []models.Transaction, keep func(models.Transaction) bool) []models.Transaction {
	out := make([]models.Transaction, 0, len(list))
	for _, tx := range list {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}
