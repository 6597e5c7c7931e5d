package web

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/p2prate/internal/domain"
	"github.com/vadiminshakov/p2prate/internal/services/rate"
)

const (
	debugPriceLimit = 10
	exampleAmount   = 100000
)

type rateReader interface {
	Get(ctx context.Context) (*rate.Result, error)
	Peek() (domain.RateSnapshot, time.Duration, bool)
	TTL() time.Duration
	Stats() rate.UsageStats
	ErrorState() rate.ErrorState
}

type breakdownComputer interface {
	Compute(ctx context.Context) (*domain.Breakdown, error)
}

// Handlers serves /rate, /debug and the health check.
type Handlers struct {
	cache   rateReader
	calc    breakdownComputer
	started time.Time
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandlers creates handlers over the cache and an uncached calculator.
func NewHandlers(cache rateReader, calc breakdownComputer, logger *zap.Logger) *Handlers {
	return &Handlers{
		cache:   cache,
		calc:    calc,
		started: time.Now(),
		now:     time.Now,
		logger:  logger,
	}
}

type rateData struct {
	SourceAverage float64 `json:"sourceAverage"`
	TargetAverage float64 `json:"targetAverage"`
	RealRate      float64 `json:"realRate"`
	FinalRate     float64 `json:"finalRate"`
}

func newRateData(s domain.RateSnapshot) rateData {
	source, target, realRate, finalRate := s.Rounded()
	return rateData{SourceAverage: source, TargetAverage: target, RealRate: realRate, FinalRate: finalRate}
}

type usageResponse struct {
	TotalRequests uint64 `json:"totalRequests"`
	FromCache     uint64 `json:"fromCache"`
	Efficiency    string `json:"efficiency"`
}

func newUsageResponse(s rate.UsageStats) usageResponse {
	return usageResponse{
		TotalRequests: s.TotalRequests,
		FromCache:     s.FromCache,
		Efficiency:    fmt.Sprintf("%d%%", s.Efficiency()),
	}
}

type rateResponse struct {
	Success         bool           `json:"success"`
	Timestamp       time.Time      `json:"timestamp"`
	Data            rateData       `json:"data"`
	Cache           bool           `json:"cache"`
	CacheAgeSeconds *int64         `json:"cacheAgeSeconds,omitempty"`
	Warning         string         `json:"warning,omitempty"`
	Stats           *usageResponse `json:"stats,omitempty"`
}

type rateErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Rate returns the cached composite rate, refreshing it when expired.
func (h *Handlers) Rate(c *fiber.Ctx) error {
	res, err := h.cache.Get(c.UserContext())
	if err != nil {
		h.logger.Error("rate unavailable", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(rateErrorResponse{
			Success: false,
			Error:   "failed to fetch the rate from Binance P2P",
			Message: err.Error(),
		})
	}

	resp := rateResponse{
		Success:   true,
		Timestamp: res.Snapshot.Timestamp,
		Data:      newRateData(res.Snapshot),
		Cache:     res.Cached,
		Warning:   res.Warning,
	}
	if res.Cached {
		age := seconds(res.Age)
		resp.CacheAgeSeconds = &age
		if res.Warning == "" {
			stats := newUsageResponse(res.Stats)
			resp.Stats = &stats
		}
	}

	return c.JSON(resp)
}

type legResponse struct {
	Fiat      string    `json:"fiat"`
	Side      string    `json:"side"`
	AllPrices []float64 `json:"allPrices"`
	Selected  []float64 `json:"selected"`
	Average   string    `json:"average"`
}

func newLegResponse(q domain.LegQuote) legResponse {
	all := q.All
	if len(all) > debugPriceLimit {
		all = all[:debugPriceLimit]
	}

	return legResponse{
		Fiat:      q.Query.Fiat,
		Side:      q.Query.Side.String(),
		AllPrices: floats(all),
		Selected:  floats(q.Selected),
		Average:   q.Average.StringFixed(domain.AveragePlaces),
	}
}

type debugResponse struct {
	Timestamp time.Time   `json:"timestamp"`
	Source    legResponse `json:"source"`
	Target    legResponse `json:"target"`
	Rates     struct {
		Real            string `json:"real"`
		FinalWithMargin string `json:"finalWithMargin"`
		Margin          string `json:"margin"`
		Formula         string `json:"formula"`
	} `json:"rates"`
	Explanation struct {
		Message string `json:"message"`
		Example string `json:"example"`
	} `json:"explanation"`
}

// Debug computes the rate from scratch and returns every intermediate list.
// It does not touch the cache.
func (h *Handlers) Debug(c *fiber.Ctx) error {
	b, err := h.calc.Compute(c.UserContext())
	if err != nil {
		h.logger.Error("debug computation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	snap := b.Snapshot
	markup := marginPercent(b.Margin)
	source, target := b.Source.Query.Fiat, b.Target.Query.Fiat

	var resp debugResponse
	resp.Timestamp = snap.Timestamp
	resp.Source = newLegResponse(b.Source)
	resp.Target = newLegResponse(b.Target)
	resp.Rates.Real = snap.RealRate.StringFixed(domain.RatePlaces)
	resp.Rates.FinalWithMargin = snap.FinalRate.StringFixed(domain.RatePlaces)
	resp.Rates.Margin = markup + "%"
	resp.Rates.Formula = fmt.Sprintf("finalRate = (%s/%s) * %s", source, target, b.Margin)
	resp.Explanation.Message = fmt.Sprintf("The final rate includes a %s%% margin over the real rate.", markup)
	if snap.FinalRate.IsPositive() {
		received := decimal.NewFromInt(exampleAmount).Div(snap.FinalRate)
		resp.Explanation.Example = fmt.Sprintf("For %d %s the customer receives %s %s",
			exampleAmount, source, received.StringFixed(2), target)
	}

	return c.JSON(resp)
}

type healthResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Uptime       string `json:"uptime"`
	CurrentRates any    `json:"currentRates"`
	Cache        struct {
		Active     bool   `json:"active"`
		AgeSeconds *int64 `json:"ageSeconds"`
		Valid      bool   `json:"valid"`
	} `json:"cache"`
	Stats struct {
		usageResponse
		ConsecutiveErrors int  `json:"consecutiveErrors"`
		CooldownActive    bool `json:"cooldownActive"`
	} `json:"stats"`
	Endpoints map[string]string `json:"endpoints"`
}

// Health reports uptime, the cached rate and usage counters.
func (h *Handlers) Health(c *fiber.Ctx) error {
	var resp healthResponse
	resp.Status = "ok"
	resp.Message = "P2P rate proxy is running"
	resp.Uptime = fmt.Sprintf("%d minutes", int64(h.now().Sub(h.started)/time.Minute))
	resp.CurrentRates = "pending"

	if snap, age, ok := h.cache.Peek(); ok {
		ageSeconds := seconds(age)
		resp.CurrentRates = newRateData(snap)
		resp.Cache.Active = true
		resp.Cache.AgeSeconds = &ageSeconds
		resp.Cache.Valid = age < h.cache.TTL()
	}

	errState := h.cache.ErrorState()
	resp.Stats.usageResponse = newUsageResponse(h.cache.Stats())
	resp.Stats.ConsecutiveErrors = errState.ConsecutiveFailures
	resp.Stats.CooldownActive = errState.CooldownActive()

	resp.Endpoints = map[string]string{
		"rate":    fmt.Sprintf("/rate (cached for %s)", h.cache.TTL()),
		"debug":   "/debug (direct query, no cache)",
		"metrics": "/metrics",
	}

	return c.JSON(resp)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func floats(prices []decimal.Decimal) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p.InexactFloat64()
	}
	return out
}

// marginPercent renders 1.15 as "15".
func marginPercent(margin decimal.Decimal) string {
	return margin.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).String()
}
