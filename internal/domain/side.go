package domain

import "fmt"

// Side of a P2P advertisement from the taker's point of view.
type Side string

const (
	// SideBuy advertisements where the asset is bought with fiat.
	SideBuy Side = "BUY"
	// SideSell advertisements where the asset is sold for fiat.
	SideSell Side = "SELL"
)

// SortOrder direction used to rank listed prices before trimming.
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// String returns the string representation.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Order returns the ranking used for this side: cheapest first for the
// currency being bought, highest first for the currency being sold.
func (s Side) Order() SortOrder {
	if s == SideSell {
		return SortDescending
	}
	return SortAscending
}

// ParseSide converts a config value into a Side.
func ParseSide(raw string) (Side, error) {
	side := Side(raw)
	if !side.IsValid() {
		return "", fmt.Errorf("invalid side %q, expected BUY or SELL", raw)
	}
	return side, nil
}

func (o SortOrder) String() string {
	if o == SortDescending {
		return "desc"
	}
	return "asc"
}
