package core

import "time"

// CategoryTotal is the sum of amounts sharing an exact category string.
type CategoryTotal struct {
	Name  string `json:"name"`
	Total Amount `json:"value"`
}

// MonthTotal holds income and expense sums for one calendar month, across
// all years.
type MonthTotal struct {
	Month   time.Month `json:"-"`
	Label   string     `json:"month"`
	Income  Amount     `json:"income"`
	Expense Amount     `json:"expense"`
}

// Overview is the owner-wide financial summary.
type Overview struct {
	TotalIncome  Amount `json:"totalIncome"`
	TotalExpense Amount `json:"totalExpense"`
	TotalBalance Amount `json:"totalBalance"`
}

// Detail is a single transaction with the total of its category.
type Detail struct {
	Transaction   Transaction `json:"transaction"`
	CategoryTotal Amount      `json:"categoryTotal"`
}
