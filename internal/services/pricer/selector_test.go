package pricer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

func decimals(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.NewFromFloat(v))
	}
	return out
}

func contains(list []decimal.Decimal, v decimal.Decimal) bool {
	for _, d := range list {
		if d.Equal(v) {
			return true
		}
	}
	return false
}

func TestSelectBand_ExcludesExtremes(t *testing.T) {
	raw := decimals(4010, 3990, 4050, 3980, 4000, 4100, 4020, 4030, 3950, 4060)
	globalMin := decimal.NewFromInt(3950)
	globalMax := decimal.NewFromInt(4100)

	tests := []struct {
		name     string
		order    domain.SortOrder
		excluded decimal.Decimal
		first    decimal.Decimal
		avg      decimal.Decimal
	}{
		{
			name:     "ascending drops the cheapest",
			order:    domain.SortAscending,
			excluded: globalMin,
			first:    decimal.NewFromInt(3980),
			// 3980 3990 4000 4010 4020 4030
			avg: decimal.NewFromInt(4005),
		},
		{
			name:     "descending drops the highest",
			order:    domain.SortDescending,
			excluded: globalMax,
			first:    decimal.NewFromInt(4060),
			// 4060 4050 4030 4020 4010 4000
			avg: decimal.RequireFromString("4028.3333333333333333"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, band, avg, err := SelectBand(raw, tt.order, DefaultTrim)
			require.NoError(t, err)
			assert.Len(t, ranked, len(raw))
			require.Len(t, band, 6)
			assert.False(t, contains(band, tt.excluded))
			assert.True(t, band[0].Equal(tt.first), "first selected %s", band[0])
			assert.True(t, avg.Round(8).Equal(tt.avg.Round(8)), "avg %s", avg)
		})
	}
}

func TestSelectBand_SevenEntriesExcludeBothEnds(t *testing.T) {
	raw := decimals(7, 1, 5, 3, 2, 6, 4)

	_, asc, _, err := SelectBand(raw, domain.SortAscending, DefaultTrim)
	require.NoError(t, err)
	require.Len(t, asc, 6)
	assert.False(t, contains(asc, decimal.NewFromInt(1)))

	_, desc, _, err := SelectBand(raw, domain.SortDescending, DefaultTrim)
	require.NoError(t, err)
	require.Len(t, desc, 6)
	assert.False(t, contains(desc, decimal.NewFromInt(7)))
}

func TestSelectBand_FiltersNonPositive(t *testing.T) {
	raw := decimals(0, -5, 10, 20, 30)

	ranked, band, avg, err := SelectBand(raw, domain.SortAscending, DefaultTrim)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
	require.Len(t, band, 2)
	assert.True(t, avg.Equal(decimal.NewFromInt(25)))
}

func TestSelectBand_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		raw  []decimal.Decimal
	}{
		{name: "empty", raw: nil},
		{name: "all non-positive", raw: decimals(0, -1, -2.5)},
		{name: "single price is skipped", raw: decimals(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, band, avg, err := SelectBand(tt.raw, domain.SortAscending, DefaultTrim)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInsufficientData)
			assert.Nil(t, band)
			assert.True(t, avg.IsZero())
		})
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	raw := decimals(3, 1, 2)
	_ = Rank(raw, domain.SortAscending)
	assert.True(t, raw[0].Equal(decimal.NewFromInt(3)))
}

func TestBand_Bounds(t *testing.T) {
	ranked := decimals(1, 2, 3)

	assert.Len(t, Band(ranked, domain.Trim{Skip: 0, Take: 10}), 3)
	assert.Len(t, Band(ranked, domain.Trim{Skip: 2, Take: 6}), 1)
	assert.Nil(t, Band(ranked, domain.Trim{Skip: 3, Take: 6}))
	assert.Nil(t, Band(ranked, domain.Trim{Skip: 0, Take: 0}))
}
