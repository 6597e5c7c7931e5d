package pricer

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

// DefaultTrim drops the most extreme advertisement and averages the next six.
var DefaultTrim = domain.Trim{Skip: 1, Take: 6}

// Rank discards non-positive prices and sorts the rest in the given order.
// The input slice is not modified.
func Rank(prices []decimal.Decimal, order domain.SortOrder) []decimal.Decimal {
	ranked := make([]decimal.Decimal, 0, len(prices))
	for _, p := range prices {
		if p.IsPositive() {
			ranked = append(ranked, p)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if order == domain.SortDescending {
			return ranked[i].GreaterThan(ranked[j])
		}
		return ranked[i].LessThan(ranked[j])
	})

	return ranked
}

// Band returns ranked[Skip : Skip+Take], clipped to the list length.
func Band(ranked []decimal.Decimal, trim domain.Trim) []decimal.Decimal {
	if trim.Skip < 0 || trim.Skip >= len(ranked) || trim.Take <= 0 {
		return nil
	}
	end := trim.Skip + trim.Take
	if end > len(ranked) {
		end = len(ranked)
	}

	band := make([]decimal.Decimal, end-trim.Skip)
	copy(band, ranked[trim.Skip:end])
	return band
}

// Average is the arithmetic mean of the band.
func Average(band []decimal.Decimal) (decimal.Decimal, error) {
	if len(band) == 0 {
		return decimal.Zero, errors.Wrap(domain.ErrInsufficientData, "empty price band")
	}
	return decimal.Avg(band[0], band[1:]...), nil
}

// SelectBand ranks raw prices, trims them and averages the band.
// It returns the ranked list, the band and its mean.
func SelectBand(raw []decimal.Decimal, order domain.SortOrder, trim domain.Trim) (ranked, band []decimal.Decimal, avg decimal.Decimal, err error) {
	ranked = Rank(raw, order)
	band = Band(ranked, trim)
	avg, err = Average(band)
	if err != nil {
		return ranked, nil, decimal.Zero, errors.Wrapf(err, "%d valid of %d listed prices, skip %d take %d",
			len(ranked), len(raw), trim.Skip, trim.Take)
	}

	return ranked, band, avg, nil
}
