package services

import (
	"fmt"
	"strings"

	"github.com/kr/text"
	"github.com/shopspring/decimal"
)

// RenderMonthReport renders s as a plain-text month report.
func RenderMonthReport(s Summary, currency string) string {
	money := func(d decimal.Decimal) string {
		return d.StringFixed(2) + " " + currency
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Finance report for %s\n\n", s.Month)

	var totals strings.Builder
	fmt.Fprintf(&totals, "Income:  %s\n", money(s.MonthTotals.Income))
	fmt.Fprintf(&totals, "Expense: %s\n", money(s.MonthTotals.Expense))
	fmt.Fprintf(&totals, "Net:     %s\n", money(s.MonthTotals.Net))
	fmt.Fprintf(&totals, "Records: %d\n", s.Count)
	b.WriteString("Totals\n")
	b.WriteString(text.Indent(totals.String(), "  "))

	b.WriteString("\nDaily\n")
	if len(s.Daily) == 0 {
		b.WriteString("  (no records)\n")
	}
	for _, row := range s.Daily {
		line := fmt.Sprintf("%s  +%s  -%s\n", row.Date, money(row.Income), money(row.Expense))
		b.WriteString(text.Indent(line, "  "))
	}

	section := func(title string, rows []CategoryTotal) {
		fmt.Fprintf(&b, "\n%s\n", title)
		if len(rows) == 0 {
			b.WriteString("  (none)\n")
			return
		}
		var body strings.Builder
		for _, r := range rows {
			fmt.Fprintf(&body, "%-20s %s\n", r.Category, money(r.Total))
		}
		b.WriteString(text.Indent(body.String(), "  "))
	}
	section("Expenses by category", s.ExpenseByCategory)
	section("Income by category", s.IncomeByCategory)

	return b.String()
}
