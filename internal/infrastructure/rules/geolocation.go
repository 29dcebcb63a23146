package rules

import (
	"context"
	"fmt"
	"math"
	"strings"

	"fraud-risk-engine/internal/domain/fraud"
)

// RefreshRequester schedules an asynchronous IP intelligence refresh
type RefreshRequester interface {
	Request(ip string) bool
}

// GeolocationAnalyzer checks delivery distance and IP reputation
type GeolocationAnalyzer struct {
	ips       fraud.IPIntelligenceRepository
	refresher RefreshRequester
}

// NewGeolocationAnalyzer creates a geolocation analyzer. refresher may be nil.
func NewGeolocationAnalyzer(ips fraud.IPIntelligenceRepository, refresher RefreshRequester) *GeolocationAnalyzer {
	return &GeolocationAnalyzer{ips: ips, refresher: refresher}
}

func (a *GeolocationAnalyzer) Name() string { return "geolocation" }

// Applies requires both order coordinates or a device IP
func (a *GeolocationAnalyzer) Applies(ev *Evaluation) bool {
	return hasRoute(ev.Input) || ev.Input.IPAddress() != ""
}

// Analyze evaluates distance and IP rules independently. Unknown IPs never flag.
func (a *GeolocationAnalyzer) Analyze(ctx context.Context, ev *Evaluation) ([]fraud.FraudFlag, error) {
	rules := rulesOf[*fraud.GeolocationConditions](ev.Rules, fraud.RuleTypeGeolocation)
	if len(rules) == 0 {
		return nil, nil
	}

	var (
		flags    []fraud.FraudFlag
		intel    *fraud.IPIntelligence
		looked   bool
		ip       = ev.Input.IPAddress()
		distance = -1.0
	)
	if hasRoute(ev.Input) {
		p, d := ev.Input.OrderDetails.PickupAddress, ev.Input.OrderDetails.DeliveryAddress
		distance = HaversineKm(*p.Latitude, *p.Longitude, *d.Latitude, *d.Longitude)
	}

	for _, rc := range rules {
		c := rc.cond
		if c.MaxDistanceKm != nil && distance >= 0 && distance > *c.MaxDistanceKm {
			desc := fmt.Sprintf("delivery distance %.1f km exceeds %.1f km", distance, *c.MaxDistanceKm)
			flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagExcessiveDeliveryDistance, fraud.CategoryGeolocation, desc))
		}

		if ip == "" || !c.NeedsIPIntelligence() {
			continue
		}
		if !looked {
			looked = true
			var err error
			if intel, err = a.lookup(ctx, ip, ev); err != nil {
				return nil, err
			}
		}
		if intel == nil {
			continue
		}

		if c.CheckVPN && intel.IsVPN {
			flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagVPNDetected, fraud.CategoryGeolocation,
				fmt.Sprintf("ip %s belongs to a VPN", ip)))
		}
		if c.CheckProxy && intel.IsProxy {
			flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagProxyDetected, fraud.CategoryGeolocation,
				fmt.Sprintf("ip %s is a known proxy", ip)))
		}
		if len(c.AllowedCountries) > 0 && intel.Country != "" && !containsFold(c.AllowedCountries, intel.Country) {
			flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagCountryNotAllowed, fraud.CategoryGeolocation,
				fmt.Sprintf("ip country %s is not in the allowed list", intel.Country)))
		}
	}
	return flags, nil
}

// lookup reads the cached verdict; a miss or expired entry is unknown and
// queues a refresh
func (a *GeolocationAnalyzer) lookup(ctx context.Context, ip string, ev *Evaluation) (*fraud.IPIntelligence, error) {
	if a.ips == nil {
		return nil, nil
	}
	intel, err := a.ips.Get(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to read ip intelligence: %w", err)
	}
	if intel == nil || intel.Expired(ev.Now) {
		if a.refresher != nil {
			a.refresher.Request(ip)
		}
		return nil, nil
	}
	return intel, nil
}

func hasRoute(in *fraud.FraudCheckInput) bool {
	return in.OrderDetails != nil &&
		in.OrderDetails.PickupAddress.HasCoordinates() &&
		in.OrderDetails.DeliveryAddress.HasCoordinates()
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// HaversineKm returns the great-circle distance between two points in km
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371.0 // km

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
