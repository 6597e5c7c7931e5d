// Package rate computes the composite P2P rate and keeps it cached.
package rate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

// DefaultMargin is applied on top of the real rate.
var DefaultMargin = decimal.RequireFromString("1.15")

type legPricer interface {
	Quote(ctx context.Context, q domain.ListingQuery) (domain.LegQuote, error)
}

// Calculator derives the composite rate from a source and a target fiat leg.
//
//	realRate  = sourceAverage / targetAverage
//	finalRate = realRate * margin
type Calculator struct {
	pricer legPricer
	source domain.ListingQuery
	target domain.ListingQuery
	margin decimal.Decimal
	now    func() time.Time
	logger *zap.Logger
}

// NewCalculator creates a calculator for the given legs.
func NewCalculator(pricer legPricer, source, target domain.ListingQuery, margin decimal.Decimal, logger *zap.Logger) (*Calculator, error) {
	if !margin.IsPositive() {
		return nil, errors.Errorf("margin must be positive, got %s", margin)
	}
	if !source.Side.IsValid() || !target.Side.IsValid() {
		return nil, errors.Errorf("invalid leg sides %q/%q", source.Side, target.Side)
	}

	return &Calculator{
		pricer: pricer,
		source: source,
		target: target,
		margin: margin,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Margin returns the configured margin factor.
func (c *Calculator) Margin() decimal.Decimal {
	return c.margin
}

// Legs returns the source and target queries.
func (c *Calculator) Legs() (source, target domain.ListingQuery) {
	return c.source, c.target
}

// Compute fetches both legs and derives the rates. Any leg error is returned.
func (c *Calculator) Compute(ctx context.Context) (*domain.Breakdown, error) {
	var source, target domain.LegQuote

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = c.pricer.Quote(gctx, c.source)
		return errors.Wrap(err, "source leg")
	})
	g.Go(func() error {
		var err error
		target, err = c.pricer.Quote(gctx, c.target)
		return errors.Wrap(err, "target leg")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	realRate, finalRate, err := Rates(source.Average, target.Average, c.margin)
	if err != nil {
		return nil, err
	}

	return &domain.Breakdown{
		Source: source,
		Target: target,
		Margin: c.margin,
		Snapshot: domain.RateSnapshot{
			Timestamp:     c.now().UTC(),
			SourceAverage: source.Average,
			TargetAverage: target.Average,
			RealRate:      realRate,
			FinalRate:     finalRate,
		},
	}, nil
}

// Rates is the pure rate formula.
func Rates(sourceAverage, targetAverage, margin decimal.Decimal) (realRate, finalRate decimal.Decimal, _ error) {
	if !targetAverage.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrInsufficientData, "target average %s", targetAverage)
	}
	realRate = sourceAverage.Div(targetAverage)
	return realRate, realRate.Mul(margin), nil
}
