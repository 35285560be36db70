package domain

// CategoryType partitions categories into income and expense labels
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Valid reports whether t is a known category type
func (t CategoryType) Valid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Category is a named, typed label applied to transactions
type Category struct {
	ID   int64        `json:"id"`
	Name string       `json:"name"`
	Type CategoryType `json:"type"`
	Icon string       `json:"icon"`
}

// CategoryInput is the candidate category as entered by the user
type CategoryInput struct {
	Name string       `json:"name"`
	Type CategoryType `json:"type"`
	Icon string       `json:"icon"`
}

// CategoryPayload is the validated request body for create and update
type CategoryPayload struct {
	Name string       `json:"name"`
	Type CategoryType `json:"type"`
	Icon string       `json:"icon"`
}
