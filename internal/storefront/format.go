package storefront

import "github.com/shopspring/decimal"

const currencySymbol = "€"

// FormatPrice renders an amount as €x.xx. Rounding happens only here.
func FormatPrice(amount decimal.Decimal) string {
	return currencySymbol + amount.StringFixed(2)
}
