package rules_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fraud-risk-engine/internal/domain/activity"
	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/rules"
)

var (
	testNow  = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	errStore = errors.New("store unavailable")
)

type fakeActivity struct {
	orders   []time.Time
	payments []time.Time
	failed   []time.Time
	stats    activity.OrderStats
	err      error
}

func countSince(times []time.Time, since time.Time) int64 {
	var n int64
	for _, t := range times {
		if !t.Before(since) {
			n++
		}
	}
	return n
}

func (f *fakeActivity) GetUser(context.Context, uuid.UUID) (*activity.UserSnapshot, error) {
	return nil, activity.ErrUserNotFound
}

func (f *fakeActivity) CountOrdersSince(_ context.Context, _ uuid.UUID, since time.Time) (int64, error) {
	return countSince(f.orders, since), f.err
}

func (f *fakeActivity) CountPaymentAttemptsSince(_ context.Context, _ uuid.UUID, since time.Time) (int64, error) {
	return countSince(f.payments, since), f.err
}

func (f *fakeActivity) CountFailedPaymentsSince(_ context.Context, _ uuid.UUID, since time.Time) (int64, error) {
	return countSince(f.failed, since), f.err
}

func (f *fakeActivity) OrderStats(context.Context, uuid.UUID) (*activity.OrderStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.stats
	return &s, nil
}

type fakeDevices struct {
	mu        sync.Mutex
	sightings []fraud.DeviceFingerprint
}

func (f *fakeDevices) CountUsersForFingerprint(_ context.Context, hash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := map[uuid.UUID]struct{}{}
	for _, d := range f.sightings {
		if d.FingerprintHash == hash {
			users[d.UserID] = struct{}{}
		}
	}
	return int64(len(users)), nil
}

func (f *fakeDevices) HasFingerprint(_ context.Context, userID uuid.UUID, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.sightings {
		if d.UserID == userID && d.FingerprintHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDevices) LatestForUser(_ context.Context, userID uuid.UUID) (*fraud.DeviceFingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *fraud.DeviceFingerprint
	for i := range f.sightings {
		d := f.sightings[i]
		if d.UserID == userID && (latest == nil || !d.LastSeen.Before(latest.LastSeen)) {
			latest = &d
		}
	}
	return latest, nil
}

func (f *fakeDevices) Upsert(_ context.Context, device *fraud.DeviceFingerprint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sightings {
		d := &f.sightings[i]
		if d.UserID == device.UserID && d.FingerprintHash == device.FingerprintHash {
			d.LastSeen = device.LastSeen
			d.SessionCount++
			return nil
		}
	}
	f.sightings = append(f.sightings, *device)
	return nil
}

type fakeIPs struct {
	entries map[string]*fraud.IPIntelligence
	reads   int
}

func (f *fakeIPs) Get(_ context.Context, ip string) (*fraud.IPIntelligence, error) {
	f.reads++
	return f.entries[ip], nil
}

func (f *fakeIPs) Upsert(_ context.Context, intel *fraud.IPIntelligence) error {
	f.entries[intel.IPAddress] = intel
	return nil
}

type fakeRefresher struct {
	requested []string
}

func (f *fakeRefresher) Request(ip string) bool {
	f.requested = append(f.requested, ip)
	return true
}

func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func minutesAgo(n ...int) []time.Time {
	out := make([]time.Time, 0, len(n))
	for _, m := range n {
		out = append(out, testNow.Add(-time.Duration(m)*time.Minute))
	}
	return out
}

func evaluation(input *fraud.FraudCheckInput, ruleSet ...*fraud.FraudRule) *rules.Evaluation {
	return &rules.Evaluation{
		Input: input,
		User: &activity.UserSnapshot{
			ID:        input.UserID,
			Role:      "customer",
			Status:    activity.AccountActive,
			CreatedAt: testNow.AddDate(-1, 0, 0),
		},
		Rules: ruleSet,
		Now:   testNow,
	}
}

func orderInput() *fraud.FraudCheckInput {
	return &fraud.FraudCheckInput{
		UserID:    uuid.New(),
		CheckType: fraud.CheckOrderCreation,
		OrderDetails: &fraud.OrderDetails{
			TotalAmount: decimal.NewFromInt(40),
			OrderType:   "delivery",
		},
	}
}
