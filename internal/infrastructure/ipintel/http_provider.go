package ipintel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrLookupFailed is returned when the reputation service answers with an error status
var ErrLookupFailed = errors.New("ip reputation lookup failed")

const apiKeyHeader = "X-API-Key"

type reputationResponse struct {
	Country string `json:"country"`
	IsVPN   bool   `json:"is_vpn"`
	IsProxy bool   `json:"is_proxy"`
	IsTor   bool   `json:"is_tor"`
}

// HTTPProvider asks a remote reputation service about an address.
// The service answers GET /v1/ip/{ip} with a JSON verdict.
type HTTPProvider struct {
	client *resty.Client
}

// NewHTTPProvider creates a provider against baseURL. apiKey may be empty.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond)
	if apiKey != "" {
		client.SetHeader(apiKeyHeader, apiKey)
	}
	return &HTTPProvider{client: client}
}

// Lookup fetches the verdict for ip
func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (*Verdict, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("ip", ip).
		SetResult(&reputationResponse{}).
		Get("/v1/ip/{ip}")
	if err != nil {
		return nil, fmt.Errorf("reputation request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode())
	}

	body := resp.Result().(*reputationResponse)
	return &Verdict{
		IsVPN:   body.IsVPN,
		IsProxy: body.IsProxy || body.IsTor,
		Country: body.Country,
	}, nil
}

// Chain queries providers in order and merges their verdicts. Anonymizer
// flags are OR-ed; the first non-empty country wins. A provider error
// fails the lookup so the refresher can retry later.
type Chain []Provider

// Lookup merges the verdicts of every provider in the chain
func (c Chain) Lookup(ctx context.Context, ip string) (*Verdict, error) {
	merged := &Verdict{}
	for _, p := range c {
		v, err := p.Lookup(ctx, ip)
		if err != nil {
			return nil, err
		}
		merged.IsVPN = merged.IsVPN || v.IsVPN
		merged.IsProxy = merged.IsProxy || v.IsProxy
		if merged.Country == "" {
			merged.Country = v.Country
		}
	}
	return merged, nil
}
