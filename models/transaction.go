package models

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Transaction is one income or expense record owned by a single user.
// Records are never updated in place: they are created and deleted.
type Transaction struct {
	ID        string          `json:"id"`
	UID       string          `json:"uid"`
	Kind      Kind            `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"` // YYYY-MM-DD
	Category  string          `json:"category,omitempty"`
	Note      string          `json:"note,omitempty"`
	CreatedAt int64           `json:"createdAt"` // epoch milliseconds
}

// Month returns the YYYY-MM prefix of the record's date.
func (t Transaction) Month() string {
	if len(t.Date) < 7 {
		return t.Date
	}
	return t.Date[:7]
}

// TransactionFromDocument decodes a stored record leniently: a missing or
// non-numeric amount becomes zero and unknown fields are ignored.
func TransactionFromDocument(id string, data map[string]any) Transaction {
	tx := Transaction{ID: id}
	tx.UID, _ = data["uid"].(string)
	kind, _ := data["kind"].(string)
	tx.Kind = Kind(kind)
	tx.Date, _ = data["date"].(string)
	tx.Category, _ = data["category"].(string)
	tx.Note, _ = data["note"].(string)
	tx.Amount = decimalValue(data["amount"])

	if n, ok := data["createdAt"].(json.Number); ok {
		tx.CreatedAt, _ = n.Int64()
	} else if f, ok := data["createdAt"].(float64); ok {
		tx.CreatedAt = int64(f)
	}
	return tx
}

// Document returns the stored representation of the record, without its id.
func (t Transaction) Document() map[string]any {
	return map[string]any{
		"uid":       t.UID,
		"kind":      string(t.Kind),
		"amount":    json.Number(t.Amount.String()),
		"date":      t.Date,
		"category":  t.Category,
		"note":      t.Note,
		"createdAt": t.CreatedAt,
	}
}

func decimalValue(v any) decimal.Decimal {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err == nil {
			return d
		}
	case float64:
		if !math.IsNaN(n) && !math.IsInf(n, 0) {
			return decimal.NewFromFloat(n)
		}
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// TransactionInput is what the entry form submits.
type TransactionInput struct {
	Kind     Kind   `json:"kind" binding:"required,oneof=income expense"`
	Amount   string `json:"amount" binding:"required"`
	Date     string `json:"date" binding:"required"`
	Category string `json:"category"`
	Note     string `json:"note"`
}
