package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AveragePlaces precision used when presenting leg averages.
	AveragePlaces int32 = 2
	// RatePlaces precision used when presenting rates.
	RatePlaces int32 = 4
)

// RateSnapshot is one computed composite rate. Values keep full precision,
// rounding is applied only by the presentation layer.
type RateSnapshot struct {
	Timestamp     time.Time
	SourceAverage decimal.Decimal
	TargetAverage decimal.Decimal
	RealRate      decimal.Decimal
	FinalRate     decimal.Decimal
}

// Rounded returns presentation values: averages to AveragePlaces, rates to RatePlaces.
func (s RateSnapshot) Rounded() (source, target, realRate, finalRate float64) {
	return s.SourceAverage.Round(AveragePlaces).InexactFloat64(),
		s.TargetAverage.Round(AveragePlaces).InexactFloat64(),
		s.RealRate.Round(RatePlaces).InexactFloat64(),
		s.FinalRate.Round(RatePlaces).InexactFloat64()
}

// Breakdown is a full computation with the intermediate price lists of both legs.
type Breakdown struct {
	Source   LegQuote
	Target   LegQuote
	Margin   decimal.Decimal
	Snapshot RateSnapshot
}
