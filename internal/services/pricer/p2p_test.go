package pricer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

type stubSearcher struct {
	prices []decimal.Decimal
	err    error
	got    domain.ListingQuery
}

func (s *stubSearcher) Search(_ context.Context, q domain.ListingQuery) ([]decimal.Decimal, error) {
	s.got = q
	return s.prices, s.err
}

func TestP2PPricer_Quote(t *testing.T) {
	searcher := &stubSearcher{prices: decimals(38, 40, 41, 39, 42, 37, 43, 36)}
	p := NewP2PPricer(searcher, DefaultTrim, zap.NewNop())

	q := domain.ListingQuery{Asset: "USDT", Fiat: "VES", Side: domain.SideSell, Page: 1, Rows: 10}
	quote, err := p.Quote(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, q, searcher.got)
	assert.Equal(t, q, quote.Query)
	assert.Len(t, quote.All, 8)
	// sell side ranks descending: 43 is skipped, 42..37 selected
	require.Len(t, quote.Selected, 6)
	assert.True(t, quote.Selected[0].Equal(decimal.NewFromInt(42)))
	assert.True(t, quote.Average.Equal(decimal.RequireFromString("39.5")))
}

func TestP2PPricer_QuotePropagatesErrors(t *testing.T) {
	q := domain.ListingQuery{Asset: "USDT", Fiat: "COP", Side: domain.SideBuy, Page: 1, Rows: 10}

	t.Run("fetch failure", func(t *testing.T) {
		searcher := &stubSearcher{err: errors.Wrap(domain.ErrNetwork, "boom")}
		_, err := NewP2PPricer(searcher, DefaultTrim, zap.NewNop()).Quote(context.Background(), q)
		assert.ErrorIs(t, err, domain.ErrNetwork)
	})

	t.Run("empty listing", func(t *testing.T) {
		searcher := &stubSearcher{prices: nil}
		_, err := NewP2PPricer(searcher, DefaultTrim, zap.NewNop()).Quote(context.Background(), q)
		assert.ErrorIs(t, err, domain.ErrInsufficientData)
	})
}
