package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

const (
	// DefaultP2PEndpoint Binance P2P advertisement search.
	DefaultP2PEndpoint = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"
	// DefaultUserAgent the endpoint rejects requests without a browser agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// DefaultRequestTimeout bounds a single search call.
	DefaultRequestTimeout = 10 * time.Second

	maxResponseBytes = 4 << 20
)

// P2PClient queries the P2P advertisement search endpoint.
type P2PClient struct {
	endpoint      string
	userAgent     string
	merchantCheck bool
	httpClient    *http.Client
	logger        *zap.Logger
}

// P2POption configures the P2PClient.
type P2POption func(*P2PClient)

// WithEndpoint overrides the search URL.
func WithEndpoint(endpoint string) P2POption {
	return func(c *P2PClient) {
		c.endpoint = endpoint
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) P2POption {
	return func(c *P2PClient) {
		c.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) P2POption {
	return func(c *P2PClient) {
		c.httpClient.Timeout = d
	}
}

// WithMerchantCheck toggles the verified-merchant filter.
func WithMerchantCheck(enabled bool) P2POption {
	return func(c *P2PClient) {
		c.merchantCheck = enabled
	}
}

// NewP2PClient creates a client with default endpoint, agent and timeout.
func NewP2PClient(logger *zap.Logger, opts ...P2POption) *P2PClient {
	c := &P2PClient{
		endpoint:      DefaultP2PEndpoint,
		userAgent:     DefaultUserAgent,
		merchantCheck: true,
		httpClient:    &http.Client{Timeout: DefaultRequestTimeout},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type searchRequest struct {
	Asset         string  `json:"asset"`
	Fiat          string  `json:"fiat"`
	Page          int     `json:"page"`
	Rows          int     `json:"rows"`
	TradeType     string  `json:"tradeType"`
	MerchantCheck bool    `json:"merchantCheck"`
	PublisherType *string `json:"publisherType"`
}

type searchResponse struct {
	Data []struct {
		Adv *struct {
			Price string `json:"price"`
		} `json:"adv"`
	} `json:"data"`
}

// Search performs one call and returns listed prices in response order.
// No retry is done here.
func (c *P2PClient) Search(ctx context.Context, q domain.ListingQuery) ([]decimal.Decimal, error) {
	body, err := json.Marshal(searchRequest{
		Asset:         q.Asset,
		Fiat:          q.Fiat,
		Page:          q.Page,
		Rows:          q.Rows,
		TradeType:     q.Side.String(),
		MerchantCheck: c.merchantCheck,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build search request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrNetwork, "search %s: %v", q, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("p2p search done",
		zap.Stringer("query", q),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(domain.ErrNetwork, "search %s: unexpected status %d", q, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(domain.ErrNetwork, "read %s response: %v", q, err)
	}

	return decodePrices(payload)
}

func decodePrices(payload []byte) ([]decimal.Decimal, error) {
	var decoded searchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, errors.Wrapf(domain.ErrMalformedResponse, "decode body: %v", err)
	}
	if decoded.Data == nil {
		return nil, errors.Wrap(domain.ErrMalformedResponse, "missing data array")
	}

	prices := make([]decimal.Decimal, 0, len(decoded.Data))
	for i, item := range decoded.Data {
		if item.Adv == nil {
			return nil, errors.Wrapf(domain.ErrMalformedResponse, "item %d has no adv", i)
		}
		price, err := decimal.NewFromString(item.Adv.Price)
		if err != nil {
			return nil, errors.Wrap(domain.ErrMalformedResponse, fmt.Sprintf("item %d price %q: %v", i, item.Adv.Price, err))
		}
		prices = append(prices, price)
	}

	return prices, nil
}
