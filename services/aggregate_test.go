package services

import (
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/finance-tracker/models"
)

func tx(kind models.Kind, amount, date, category string) models.Transaction {
	return models.Transaction{Kind: kind, Amount: decimal.RequireFromString(amount), Date: date, Category: category}
}

func scenario() []models.Transaction {
	return []models.Transaction{
		tx(models.KindIncome, "5000", "2025-01-03", ""),
		tx(models.KindExpense, "1200", "2025-01-03", "Market"),
		tx(models.KindExpense, "300", "2025-01-10", "Market"),
	}
}

func TestAggregationScenario(t *testing.T) {
	list := scenario()

	totals := ComputeTotals(list)
	if totals.Income.String() != "5000" || totals.Expense.String() != "1500" || totals.Net.String() != "3500" {
		t.Errorf("totals = %+v", totals)
	}

	month := MonthSlice(list, "2025-01")
	if len(month) != 3 {
		t.Fatalf("month slice has %d items", len(month))
	}

	daily := DailySeries(month)
	want := []struct{ date, income, expense string }{
		{"2025-01-03", "5000", "1200"},
		{"2025-01-10", "0", "300"},
	}
	if len(daily) != len(want) {
		t.Fatalf("daily = %+v", daily)
	}
	for i, w := range want {
		if daily[i].Date != w.date || daily[i].Income.String() != w.income || daily[i].Expense.String() != w.expense {
			t.Errorf("daily[%d] = %+v, want %+v", i, daily[i], w)
		}
	}

	cats := CategoryBreakdown(month, models.KindExpense)
	if len(cats) != 1 || cats[0].Category != "Market" || cats[0].Total.String() != "1500" {
		t.Errorf("breakdown = %+v", cats)
	}
	income := CategoryBreakdown(month, models.KindIncome)
	if len(income) != 1 || income[0].Category != OtherCategory {
		t.Errorf("income breakdown = %+v, want the catch-all bucket", income)
	}
}

func TestFilters(t *testing.T) {
	list := []models.Transaction{
		{Kind: models.KindIncome, Date: "2025-01-03", Category: "Salary", Note: "January pay"},
		{Kind: models.KindExpense, Date: "2025-01-04", Category: "Market", Note: "Groceries"},
		{Kind: models.KindExpense, Date: "2025-02-01", Category: "Rent"},
	}

	tests := []struct {
		name  string
		tab   Tab
		query string
		want  int
	}{
		{"all", TabAll, "", 3},
		{"income tab", TabIncome, "", 1},
		{"expense tab", TabExpense, "", 2},
		{"case-insensitive note", TabAll, "  GROCER ", 1},
		{"category", TabAll, "rent", 1},
		{"date", TabAll, "2025-01", 2},
		{"tab and text", TabExpense, "salary", 0},
		{"blank query", TabAll, "   ", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VisibleItems(list, tt.tab, tt.query); len(got) != tt.want {
				t.Errorf("VisibleItems(%q, %q) = %d items, want %d", tt.tab, tt.query, len(got), tt.want)
			}
		})
	}
}

func TestAggregationsDoNotMutateInput(t *testing.T) {
	list := scenario()
	before := fmt.Sprint(list)

	FilterByTab(list, TabExpense)
	TextFilter(list, "market")
	Summarize(list, "2025-01")

	if fmt.Sprint(list) != before {
		t.Error("input list was modified")
	}
}

func TestDailySeriesSkipsUndated(t *testing.T) {
	rows := DailySeries([]models.Transaction{tx(models.KindIncome, "1", "", "")})
	if len(rows) != 0 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestTotalsTreatsZeroAmounts(t *testing.T) {
	list := []models.Transaction{
		models.TransactionFromDocument("a", map[string]any{"kind": "income", "amount": "oops"}),
		tx(models.KindIncome, "10", "2025-01-01", ""),
	}
	if got := ComputeTotals(list); got.Income.String() != "10" {
		t.Errorf("income = %s", got.Income)
	}
}

func randomTransactions(f *gofakeit.Faker, n int) []models.Transaction {
	cats := []string{"Market", "Rent", "Bills", "", "Salary"}
	months := []string{"2024-12", "2025-01", "2025-02"}
	list := make([]models.Transaction, n)
	for i := range list {
		kind := models.KindExpense
		if f.Bool() {
			kind = models.KindIncome
		}
		list[i] = models.Transaction{
			ID:       f.UUID(),
			Kind:     kind,
			Amount:   decimal.NewFromFloat(f.Price(0.01, 5000)).Round(2),
			Date:     fmt.Sprintf("%s-%02d", f.RandomString(months), f.Number(1, 28)),
			Category: f.RandomString(cats),
			Note:     f.Word(),
		}
	}
	return list
}

func TestAggregationProperties(t *testing.T) {
	f := gofakeit.New(20250103)

	for round := 0; round < 50; round++ {
		list := randomTransactions(f, f.Number(0, 60))
		month := "2025-01"

		totals := ComputeTotals(list)
		if !totals.Net.Equal(totals.Income.Sub(totals.Expense)) {
			t.Fatalf("round %d: net %s != %s - %s", round, totals.Net, totals.Income, totals.Expense)
		}

		monthItems := MonthSlice(list, month)
		for _, tx := range monthItems {
			if tx.Date[:7] != month {
				t.Fatalf("round %d: %s leaked into %s", round, tx.Date, month)
			}
		}

		daily := DailySeries(monthItems)
		if !sort.SliceIsSorted(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date }) {
			t.Fatalf("round %d: daily series not sorted", round)
		}
		seen := map[string]bool{}
		for _, row := range daily {
			if seen[row.Date] {
				t.Fatalf("round %d: duplicate row for %s", round, row.Date)
			}
			seen[row.Date] = true
		}

		monthTotals := ComputeTotals(monthItems)
		for kind, want := range map[models.Kind]decimal.Decimal{
			models.KindIncome:  monthTotals.Income,
			models.KindExpense: monthTotals.Expense,
		} {
			sum := decimal.Zero
			for _, c := range CategoryBreakdown(monthItems, kind) {
				sum = sum.Add(c.Total)
			}
			if !sum.Equal(want) {
				t.Fatalf("round %d: %s breakdown sums to %s, totals say %s", round, kind, sum, want)
			}
		}

		dailyIncome := decimal.Zero
		for _, row := range daily {
			dailyIncome = dailyIncome.Add(row.Income)
		}
		if !dailyIncome.Equal(monthTotals.Income) {
			t.Fatalf("round %d: daily income %s != %s", round, dailyIncome, monthTotals.Income)
		}
	}
}

func TestSummarize(t *testing.T) {
	list := append(scenario(), tx(models.KindExpense, "99", "2024-12-31", "Rent"))

	s := Summarize(list, "2025-01")

	if s.Count != 3 || s.MonthTotals.Expense.String() != "1500" {
		t.Errorf("month part = %+v", s)
	}
	if s.Totals.Expense.String() != "1599" {
		t.Errorf("overall expense = %s", s.Totals.Expense)
	}
	if !reflect.DeepEqual(s.ExpenseByCategory, CategoryBreakdown(MonthSlice(list, "2025-01"), models.KindExpense)) {
		t.Error("summary breakdown differs from CategoryBreakdown")
	}
}
