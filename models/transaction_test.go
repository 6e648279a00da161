package models

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransactionFromDocument(t *testing.T) {
	doc := map[string]any{
		"uid":       "u1",
		"kind":      "expense",
		"amount":    json.Number("1200.50"),
		"date":      "2025-01-03",
		"category":  "Market",
		"note":      "weekly",
		"createdAt": json.Number("1735900000000"),
	}

	tx := TransactionFromDocument("t1", doc)

	if tx.ID != "t1" || tx.UID != "u1" || tx.Kind != KindExpense {
		t.Errorf("identity fields wrong: %+v", tx)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("1200.5")) {
		t.Errorf("Amount = %s", tx.Amount)
	}
	if tx.Month() != "2025-01" || tx.CreatedAt != 1735900000000 {
		t.Errorf("Month/CreatedAt wrong: %+v", tx)
	}
}

func TestTransactionFromDocumentBadAmountIsZero(t *testing.T) {
	for _, amount := range []any{nil, "abc", true, map[string]any{}} {
		tx := TransactionFromDocument("t", map[string]any{"amount": amount})
		if !tx.Amount.IsZero() {
			t.Errorf("amount %#v decoded to %s, want 0", amount, tx.Amount)
		}
	}
}

func TestTransactionDocumentRoundTrip(t *testing.T) {
	tx := Transaction{
		UID:       "u1",
		Kind:      KindIncome,
		Amount:    decimal.RequireFromString("5000"),
		Date:      "2025-01-03",
		Category:  "Salary",
		CreatedAt: 1,
	}

	raw, err := json.Marshal(tx.Document())
	if err != nil {
		t.Fatal(err)
	}
	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		t.Fatal(err)
	}

	back := TransactionFromDocument("id", data)
	if !back.Amount.Equal(tx.Amount) || back.Kind != tx.Kind || back.Date != tx.Date {
		t.Errorf("round trip = %+v, want %+v", back, tx)
	}
}
