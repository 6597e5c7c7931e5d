// Package domain defines core data structures used by the rate proxy.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ListingQuery identifies one page of P2P advertisements.
type ListingQuery struct {
	Asset string
	Fiat  string
	Side  Side
	Page  int
	Rows  int
}

// String returns the string representation.
func (q ListingQuery) String() string {
	return fmt.Sprintf("%s/%s %s", q.Asset, q.Fiat, q.Side)
}

// Trim selects a contiguous band out of a ranked price list.
type Trim struct {
	// Skip leading entries dropped as outliers.
	Skip int
	// Take entries kept after Skip.
	Take int
}

// LegQuote is the priced result for one fiat leg.
type LegQuote struct {
	Query ListingQuery
	// All valid prices, ranked.
	All []decimal.Decimal
	// Selected band after trimming.
	Selected []decimal.Decimal
	Average  decimal.Decimal
}
