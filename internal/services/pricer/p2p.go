package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

type listingSearcher interface {
	Search(ctx context.Context, q domain.ListingQuery) ([]decimal.Decimal, error)
}

// P2PPricer prices one fiat leg from P2P advertisements.
type P2PPricer struct {
	searcher listingSearcher
	trim     domain.Trim
	logger   *zap.Logger
}

// NewP2PPricer creates a leg pricer using the given trim.
func NewP2PPricer(searcher listingSearcher, trim domain.Trim, logger *zap.Logger) *P2PPricer {
	return &P2PPricer{searcher: searcher, trim: trim, logger: logger}
}

// Quote fetches the listing for q and averages its trimmed band.
// Ranking follows q.Side.
func (p *P2PPricer) Quote(ctx context.Context, q domain.ListingQuery) (domain.LegQuote, error) {
	raw, err := p.searcher.Search(ctx, q)
	if err != nil {
		return domain.LegQuote{}, err
	}

	ranked, band, avg, err := SelectBand(raw, q.Side.Order(), p.trim)
	if err != nil {
		return domain.LegQuote{}, errors.Wrapf(err, "price %s", q)
	}

	p.logger.Debug("leg priced",
		zap.Stringer("query", q),
		zap.Int("listed", len(raw)),
		zap.Int("selected", len(band)),
		zap.String("average", avg.String()))

	return domain.LegQuote{Query: q, All: ranked, Selected: band, Average: avg}, nil
}
