// Package ipintel resolves IP reputation verdicts and refreshes the
// cached copies the geolocation analyzer reads.
package ipintel

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// ErrInvalidIP is returned for addresses that do not parse
var ErrInvalidIP = errors.New("invalid ip address")

// Verdict is what a provider knows about an address
type Verdict struct {
	IsVPN   bool
	IsProxy bool
	Country string
}

// Provider looks up reputation for a single IP
type Provider interface {
	Lookup(ctx context.Context, ip string) (*Verdict, error)
}

// GeoIPProvider answers from local MaxMind databases. Either database may
// be absent; missing data yields an empty verdict.
type GeoIPProvider struct {
	country   *geoip2.Reader
	anonymous *geoip2.Reader
}

// OpenGeoIP opens the configured databases. Empty paths are skipped.
func OpenGeoIP(countryPath, anonymousPath string) (*GeoIPProvider, error) {
	p := &GeoIPProvider{}
	if countryPath != "" {
		r, err := geoip2.Open(countryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open country database: %w", err)
		}
		p.country = r
	}
	if anonymousPath != "" {
		r, err := geoip2.Open(anonymousPath)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open anonymous ip database: %w", err)
		}
		p.anonymous = r
	}
	return p, nil
}

// Enabled reports whether any database is loaded
func (p *GeoIPProvider) Enabled() bool {
	return p != nil && (p.country != nil || p.anonymous != nil)
}

// Lookup resolves country and anonymizer flags for ip
func (p *GeoIPProvider) Lookup(_ context.Context, ip string) (*Verdict, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	v := &Verdict{}
	if p.country != nil {
		rec, err := p.country.Country(parsed)
		if err != nil {
			return nil, fmt.Errorf("country lookup: %w", err)
		}
		v.Country = rec.Country.IsoCode
	}
	if p.anonymous != nil {
		rec, err := p.anonymous.AnonymousIP(parsed)
		if err != nil {
			return nil, fmt.Errorf("anonymous ip lookup: %w", err)
		}
		v.IsVPN = rec.IsAnonymousVPN
		v.IsProxy = rec.IsPublicProxy || rec.IsResidentialProxy || rec.IsTorExitNode
	}
	return v, nil
}

// Close releases the database handles
func (p *GeoIPProvider) Close() error {
	var errs []error
	if p.country != nil {
		errs = append(errs, p.country.Close())
	}
	if p.anonymous != nil {
		errs = append(errs, p.anonymous.Close())
	}
	return errors.Join(errs...)
}
