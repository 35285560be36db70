// Package validation checks candidate categories and transactions against the
// ledger's domain rules before anything is submitted. Every function here is a
// pure function of its arguments.
package validation

import (
	"strings"
	"time"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/shopspring/decimal"
)

// DateLayout is the ISO-8601 calendar date layout used on the wire
const DateLayout = "2006-01-02"

// MaxNameLength bounds category and transaction names
const MaxNameLength = 255

// ValidateCategory checks a new category against the supplied snapshot.
// Names are compared trimmed and case-insensitively.
func ValidateCategory(in domain.CategoryInput, existing []domain.Category) (domain.CategoryPayload, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.CategoryPayload{}, domain.NewValidationError("name", "Category name is required")
	}
	if len(name) > MaxNameLength {
		return domain.CategoryPayload{}, domain.NewValidationError("name", "Category name must be 255 characters or less")
	}
	if !in.Type.Valid() {
		return domain.CategoryPayload{}, domain.NewValidationError("type", "Category type must be income or expense")
	}

	for _, c := range existing {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return domain.CategoryPayload{}, domain.NewValidationError("name", "Category name already exists")
		}
	}

	return domain.CategoryPayload{Name: name, Type: in.Type, Icon: in.Icon}, nil
}

// ValidateCategoryUpdate checks an edit of an existing category.
// Uniqueness is not rechecked on update.
func ValidateCategoryUpdate(id int64, in domain.CategoryInput) (domain.CategoryPayload, error) {
	if id == 0 {
		return domain.CategoryPayload{}, domain.NewValidationError("id", "Category ID is missing for update")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.CategoryPayload{}, domain.NewValidationError("name", "Category name is required")
	}
	if in.Type != "" && !in.Type.Valid() {
		return domain.CategoryPayload{}, domain.NewValidationError("type", "Category type must be income or expense")
	}

	return domain.CategoryPayload{Name: name, Type: in.Type, Icon: in.Icon}, nil
}

// ValidateTransaction checks a candidate income or expense. now supplies "today";
// its own location decides the calendar day. A date equal to today is accepted.
func ValidateTransaction(in domain.TransactionInput, now time.Time) (domain.TransactionPayload, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.TransactionPayload{}, domain.NewValidationError("name", "Please enter the name")
	}

	amount, err := ParseAmount(string(in.Amount))
	if err != nil {
		return domain.TransactionPayload{}, err
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		return domain.TransactionPayload{}, domain.NewValidationError("date", "Please select a date")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return domain.TransactionPayload{}, domain.NewValidationError("date", "Date must be in YYYY-MM-DD format")
	}
	// ISO dates order lexicographically
	if date > now.Format(DateLayout) {
		return domain.TransactionPayload{}, domain.NewValidationError("date", "Date cannot be in the future")
	}

	if in.CategoryID == 0 {
		return domain.TransactionPayload{}, domain.NewValidationError("categoryId", "Please select a category")
	}

	return domain.TransactionPayload{
		Name:       name,
		Amount:     amount,
		Date:       date,
		Icon:       in.Icon,
		CategoryID: in.CategoryID,
	}, nil
}

// ParseAmount parses a form amount, requiring a number strictly greater than zero
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	amount, err := decimal.NewFromString(raw)
	if raw == "" || err != nil || !amount.IsPositive() {
		return decimal.Zero, domain.NewValidationError("amount", "Amount should be a valid number greater than 0")
	}
	return amount, nil
}
