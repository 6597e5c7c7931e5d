package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

var copQuery = domain.ListingQuery{Asset: "USDT", Fiat: "COP", Side: domain.SideBuy, Page: 1, Rows: 10}

func TestP2PClient_Search(t *testing.T) {
	var gotBody map[string]any
	var gotUA, gotContentType, gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"code":"000000","data":[{"adv":{"price":"4012.50"}},{"adv":{"price":"3999"}}]}`))
	}))
	defer srv.Close()

	client := NewP2PClient(zap.NewNop(), WithEndpoint(srv.URL), WithUserAgent("test-agent"))

	prices, err := client.Search(context.Background(), copQuery)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.True(t, prices[0].Equal(decimal.RequireFromString("4012.5")))
	assert.True(t, prices[1].Equal(decimal.NewFromInt(3999)))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "USDT", gotBody["asset"])
	assert.Equal(t, "COP", gotBody["fiat"])
	assert.Equal(t, "BUY", gotBody["tradeType"])
	assert.Equal(t, float64(1), gotBody["page"])
	assert.Equal(t, float64(10), gotBody["rows"])
	assert.Equal(t, true, gotBody["merchantCheck"])
	assert.Contains(t, gotBody, "publisherType")
	assert.Nil(t, gotBody["publisherType"])
}

func TestP2PClient_SearchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`, expected: domain.ErrNetwork},
		{name: "not json", status: http.StatusOK, body: `<html>blocked</html>`, expected: domain.ErrMalformedResponse},
		{name: "missing data", status: http.StatusOK, body: `{"code":"000000"}`, expected: domain.ErrMalformedResponse},
		{name: "missing adv", status: http.StatusOK, body: `{"data":[{"advertiser":{}}]}`, expected: domain.ErrMalformedResponse},
		{name: "bad price", status: http.StatusOK, body: `{"data":[{"adv":{"price":"abc"}}]}`, expected: domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewP2PClient(zap.NewNop(), WithEndpoint(srv.URL))
			prices, err := client.Search(context.Background(), copQuery)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, prices)
		})
	}
}

func TestP2PClient_SearchEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	prices, err := NewP2PClient(zap.NewNop(), WithEndpoint(srv.URL)).Search(context.Background(), copQuery)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestP2PClient_SearchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewP2PClient(zap.NewNop(), WithEndpoint(srv.URL), WithTimeout(50*time.Millisecond))

	_, err := client.Search(context.Background(), copQuery)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestP2PClient_SearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewP2PClient(zap.NewNop(), WithEndpoint(url)).Search(context.Background(), copQuery)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}
