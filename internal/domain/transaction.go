package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind selects one of the two transaction partitions
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// ParseKind accepts the singular or plural spelling used by routes
func ParseKind(s string) (Kind, error) {
	switch s {
	case "income", "incomes":
		return KindIncome, nil
	case "expense", "expenses":
		return KindExpense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Plural returns the collection name, e.g. "incomes"
func (k Kind) Plural() string {
	return string(k) + "s"
}

// CategoryType returns the category type matching this partition
func (k Kind) CategoryType() CategoryType {
	return CategoryType(k)
}

// Transaction is a single income or expense record
type Transaction struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"`
	Icon         string          `json:"icon"`
	CategoryID   int64           `json:"categoryId"`
	CategoryName string          `json:"categoryName,omitempty"`
	Type         string          `json:"type,omitempty"`
}

// TransactionInput is the raw form input. Amount and Date are kept as entered;
// a zero CategoryID means no category was selected.
type TransactionInput struct {
	Name       string      `json:"name"`
	Amount     AmountInput `json:"amount"`
	Date       string      `json:"date"`
	Icon       string      `json:"icon"`
	CategoryID int64       `json:"categoryId"`
}

// AmountInput is an amount as entered. It decodes from a JSON string or a JSON
// number; either way the text is kept for validation.
type AmountInput string

// UnmarshalJSON implements json.Unmarshaler
func (a *AmountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string: %w", err)
	}
	*a = AmountInput(n.String())
	return nil
}

// TransactionPayload is the validated request body for create
type TransactionPayload struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	Icon       string          `json:"icon"`
	CategoryID int64           `json:"categoryId"`
}

// Filter narrows a transaction listing on the server side
type Filter struct {
	Type      Kind   `json:"type"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	SortField string `json:"sortField,omitempty"` // date, amount, name
	SortOrder string `json:"sortOrder,omitempty"` // asc, desc
}
