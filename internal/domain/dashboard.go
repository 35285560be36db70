package domain

import "github.com/shopspring/decimal"

// DashboardSummary is computed by the ledger service and treated as opaque here
type DashboardSummary struct {
	TotalBalance       decimal.Decimal `json:"totalBalance"`
	TotalIncome        decimal.Decimal `json:"totalIncome"`
	TotalExpense       decimal.Decimal `json:"totalExpense"`
	RecentTransactions []Transaction   `json:"recentTransactions"`
	Recent5Incomes     []Transaction   `json:"recent5Incomes"`
	Recent5Expenses    []Transaction   `json:"recent5Expenses"`
}
