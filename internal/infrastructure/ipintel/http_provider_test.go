package ipintel_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/infrastructure/ipintel"
)

func TestHTTPProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ip/203.0.113.9", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"country":"NL","is_vpn":false,"is_proxy":false,"is_tor":true}`))
	}))
	defer srv.Close()

	p := ipintel.NewHTTPProvider(srv.URL, "secret", time.Second)
	v, err := p.Lookup(context.Background(), "203.0.113.9")

	require.NoError(t, err)
	assert.Equal(t, "NL", v.Country)
	assert.False(t, v.IsVPN)
	assert.True(t, v.IsProxy, "tor exits count as proxies")
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := ipintel.NewHTTPProvider(srv.URL, "", time.Second)
	_, err := p.Lookup(context.Background(), "203.0.113.9")

	assert.ErrorIs(t, err, ipintel.ErrLookupFailed)
}

func TestHTTPProvider_InvalidIPSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := ipintel.NewHTTPProvider(srv.URL, "", time.Second)
	_, err := p.Lookup(context.Background(), "not-an-ip")

	assert.ErrorIs(t, err, ipintel.ErrInvalidIP)
	assert.Zero(t, calls.Load())
}

type fixedProvider struct {
	verdict *ipintel.Verdict
	err     error
}

func (f fixedProvider) Lookup(context.Context, string) (*ipintel.Verdict, error) {
	return f.verdict, f.err
}

func TestChain_MergesVerdicts(t *testing.T) {
	chain := ipintel.Chain{
		fixedProvider{verdict: &ipintel.Verdict{IsVPN: true}},
		fixedProvider{verdict: &ipintel.Verdict{Country: "DE", IsProxy: true}},
		fixedProvider{verdict: &ipintel.Verdict{Country: "FR"}},
	}

	v, err := chain.Lookup(context.Background(), "198.51.100.1")

	require.NoError(t, err)
	assert.Equal(t, &ipintel.Verdict{IsVPN: true, IsProxy: true, Country: "DE"}, v)
}

func TestChain_FailsOnProviderError(t *testing.T) {
	boom := errors.New("timeout")
	chain := ipintel.Chain{
		fixedProvider{verdict: &ipintel.Verdict{}},
		fixedProvider{err: boom},
	}

	_, err := chain.Lookup(context.Background(), "198.51.100.1")
	assert.ErrorIs(t, err, boom)
}
