package domain

import "github.com/shopspring/decimal"

// AllCategories is the category selector value that applies no category filter.
const AllCategories = "All"

type Product struct {
	ID       int64
	Name     string
	Category string
	Price    decimal.Decimal

	// Display metadata, not used by filtering or totals.
	Rating float64
	Image  string
}

// FormatAmount renders a money amount with exactly two decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
