package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/http/router"
	"fraud-risk-engine/internal/interfaces/http/handler"
	"fraud-risk-engine/internal/pkg/config"
	"fraud-risk-engine/internal/pkg/metrics"
)

type stubChecker struct {
	result *fraud.FraudCheckResult
	err    error
	input  *fraud.FraudCheckInput
}

func (s *stubChecker) Execute(_ context.Context, input *fraud.FraudCheckInput) (*fraud.FraudCheckResult, error) {
	s.input = input
	return s.result, s.err
}

// stubAdmin records the principal and arguments it was called with
type stubAdmin struct {
	rules     map[uuid.UUID]*fraud.FraudRule
	saveErr   error
	alertErr  error
	profile   *fraud.UserRiskScore
	failAll   error
	principal uuid.UUID
	review    fraud.ReviewInput
	reason    string
	filter    fraud.AlertFilter
	logFilter fraud.CheckLogFilter
}

func newStubAdmin() *stubAdmin {
	return &stubAdmin{rules: make(map[uuid.UUID]*fraud.FraudRule)}
}

func (s *stubAdmin) ListRules(_ context.Context, isActive *bool) ([]*fraud.FraudRule, error) {
	var out []*fraud.FraudRule
	for _, r := range s.rules {
		if isActive == nil || r.IsActive == *isActive {
			out = append(out, r)
		}
	}
	return out, s.failAll
}

func (s *stubAdmin) GetRule(_ context.Context, id uuid.UUID) (*fraud.FraudRule, error) {
	if s.failAll != nil {
		return nil, s.failAll
	}
	r, ok := s.rules[id]
	if !ok {
		return nil, fraud.ErrRuleNotFound
	}
	return r, nil
}

func (s *stubAdmin) SaveRule(_ context.Context, rule *fraud.FraudRule) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *stubAdmin) ToggleRule(_ context.Context, id uuid.UUID) (*fraud.FraudRule, error) {
	r, ok := s.rules[id]
	if !ok {
		return nil, fraud.ErrRuleNotFound
	}
	r.IsActive = !r.IsActive
	return r, nil
}

func (s *stubAdmin) DeleteRule(_ context.Context, id uuid.UUID) error {
	if _, ok := s.rules[id]; !ok {
		return fraud.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *stubAdmin) ListAlerts(_ context.Context, filter fraud.AlertFilter) ([]*fraud.FraudAlert, int64, error) {
	s.filter = filter
	return nil, 0, s.failAll
}

func (s *stubAdmin) GetAlert(_ context.Context, id uuid.UUID) (*fraud.FraudAlert, error) {
	return nil, fraud.ErrAlertNotFound
}

func (s *stubAdmin) ReviewAlert(_ context.Context, id, reviewerID uuid.UUID, input fraud.ReviewInput) (*fraud.FraudAlert, error) {
	s.principal = reviewerID
	s.review = input
	if s.alertErr != nil {
		return nil, s.alertErr
	}
	return &fraud.FraudAlert{ID: id, Status: fraud.AlertConfirmed, ReviewedBy: &reviewerID}, nil
}

func (s *stubAdmin) GetUserRiskProfile(_ context.Context, userID uuid.UUID) (*fraud.UserRiskScore, error) {
	if s.profile == nil {
		return nil, fraud.ErrRiskProfileNotFound
	}
	return s.profile, nil
}

func (s *stubAdmin) BlockUser(_ context.Context, userID, blockedBy uuid.UUID, reason string, unblockAt *time.Time) (*fraud.UserRiskScore, error) {
	s.principal = blockedBy
	s.reason = reason
	return &fraud.UserRiskScore{UserID: userID, IsBlocked: true, BlockedBy: &blockedBy, BlockedReason: reason, UnblockAt: unblockAt}, nil
}

func (s *stubAdmin) UnblockUser(_ context.Context, userID uuid.UUID) (*fraud.UserRiskScore, error) {
	return &fraud.UserRiskScore{UserID: userID}, nil
}

func (s *stubAdmin) GetStatistics(_ context.Context, now time.Time) (*fraud.Statistics, error) {
	if s.failAll != nil {
		return nil, s.failAll
	}
	return &fraud.Statistics{AlertsToday: 3, GeneratedAt: now}, nil
}

func (s *stubAdmin) ListCheckLogs(_ context.Context, filter fraud.CheckLogFilter) ([]*fraud.FraudCheckLog, int64, error) {
	s.logFilter = filter
	return []*fraud.FraudCheckLog{{ID: uuid.New()}}, 1, nil
}

type stubPing struct{ err error }

func (p stubPing) Ping(context.Context) error { return p.err }

type fixture struct {
	checker *stubChecker
	admin   *stubAdmin
	handler http.Handler
	reg     *prometheus.Registry
}

func newFixture(t *testing.T, opts ...func(*router.Options)) *fixture {
	t.Helper()
	f := &fixture{
		checker: &stubChecker{},
		admin:   newStubAdmin(),
		reg:     prometheus.NewRegistry(),
	}
	metrics.New(f.reg)

	o := router.Options{
		Check:   handler.NewCheckHandler(f.checker, nil),
		Fraud:   handler.NewFraudHandler(f.admin, nil),
		Health:  handler.NewHealthHandler("test", map[string]handler.HealthChecker{"database": stubPing{}}),
		Metrics: handler.MetricsHandler(f.reg),
	}
	for _, opt := range opts {
		opt(&o)
	}
	f.handler = router.NewRouter(o).Handler()
	return f
}

func (f *fixture) do(method, path, body string, principal *uuid.UUID) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != nil {
		req.Header.Set(handler.PrincipalHeader, principal.String())
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const velocityRuleBody = `{
	"name": "rapid orders",
	"rule_type": "velocity",
	"conditions": {"metric": "orders_per_hour", "threshold": 5, "time_window_seconds": 3600},
	"severity": "medium",
	"score_impact": 10
}`

func TestCheck_ReturnsResult(t *testing.T) {
	f := newFixture(t)
	checkID := uuid.New()
	f.checker.result = &fraud.FraudCheckResult{
		CheckID:        checkID,
		RiskScore:      65,
		RiskLevel:      fraud.RiskLevelHigh,
		Recommendation: fraud.RecommendReview,
		Flags:          []fraud.FraudFlag{},
		TriggeredRules: []uuid.UUID{},
	}
	userID := uuid.New()

	rec := f.do(http.MethodPost, "/api/v1/fraud/check",
		`{"user_id":"`+userID.String()+`","check_type":"order_creation"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[fraud.FraudCheckResult](t, rec)
	assert.Equal(t, checkID, got.CheckID)
	assert.Equal(t, 65, got.RiskScore)
	assert.Equal(t, fraud.RecommendReview, got.Recommendation)
	require.NotNil(t, f.checker.input)
	assert.Equal(t, userID, f.checker.input.UserID)
	assert.Equal(t, fraud.CheckOrderCreation, f.checker.input.CheckType)
}

func TestCheck_DoesNotRequirePrincipal(t *testing.T) {
	f := newFixture(t)
	f.checker.result = &fraud.FraudCheckResult{Recommendation: fraud.RecommendAllow}

	rec := f.do(http.MethodPost, "/api/v1/fraud/check", `{"user_id":"`+uuid.NewString()+`","check_type":"login"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		field  string
	}{
		{"malformed body", `{"user_id":`, nil, http.StatusBadRequest, ""},
		{"validation", `{}`, fraud.NewValidationError("user_id", "is required"), http.StatusBadRequest, "user_id"},
		{"unexpected", `{}`, errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.checker.err = tt.err

			rec := f.do(http.MethodPost, "/api/v1/fraud/check", tt.body, nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decode[handler.ErrorResponse](t, rec)
			assert.Equal(t, tt.field, body.Field)
			assert.NotContains(t, body.Error, "boom")
		})
	}
}

func TestCheck_RateLimited(t *testing.T) {
	l, err := router.NewRateLimiter(config.RateLimitConfig{Enabled: true, Rate: "1-M"}, nil)
	require.NoError(t, err)
	f := newFixture(t, func(o *router.Options) { o.CheckLimiter = l })
	f.checker.result = &fraud.FraudCheckResult{Recommendation: fraud.RecommendAllow}
	body := `{"user_id":"` + uuid.NewString() + `","check_type":"login"}`

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/fraud/check", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/api/v1/fraud/check", body, nil).Code)

	// admin routes are not limited
	principal := uuid.New()
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/fraud/statistics", "", &principal).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/fraud/statistics", "", &principal).Code)
}

func TestNewRateLimiter(t *testing.T) {
	l, err := router.NewRateLimiter(config.RateLimitConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = router.NewRateLimiter(config.RateLimitConfig{Enabled: true, Rate: "lots"}, nil)
	assert.Error(t, err)
}

func TestAdmin_RequiresPrincipal(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/fraud/rules", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fraud/statistics", nil)
	req.Header.Set(handler.PrincipalHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRules_Lifecycle(t *testing.T) {
	f := newFixture(t)
	principal := uuid.New()

	rec := f.do(http.MethodPost, "/api/v1/fraud/rules", velocityRuleBody, &principal)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[fraud.FraudRule](t, rec)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, principal, *created.CreatedBy)
	require.IsType(t, &fraud.VelocityConditions{}, created.Conditions)
	assert.Equal(t, 5, created.Conditions.(*fraud.VelocityConditions).Threshold)

	path := "/api/v1/fraud/rules/" + created.ID.String()

	rec = f.do(http.MethodGet, path, "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rapid orders", decode[fraud.FraudRule](t, rec).Name)

	updated := strings.Replace(velocityRuleBody, `"score_impact": 10`, `"score_impact": 25`, 1)
	rec = f.do(http.MethodPut, path, updated, &principal)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25, decode[fraud.FraudRule](t, rec).ScoreImpact)

	rec = f.do(http.MethodPatch, path+"/toggle", "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[fraud.FraudRule](t, rec).IsActive)

	rec = f.do(http.MethodGet, "/api/v1/fraud/rules?is_active=false", "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]fraud.FraudRule](t, rec), 1)

	rec = f.do(http.MethodDelete, path, "", &principal)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, path, "", &principal)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRules_ListEmptyIsArray(t *testing.T) {
	f := newFixture(t)
	principal := uuid.New()

	rec := f.do(http.MethodGet, "/api/v1/fraud/rules", "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRules_Errors(t *testing.T) {
	principal := uuid.New()
	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		saveErr error
		status  int
	}{
		{"bad id", http.MethodGet, "/api/v1/fraud/rules/nope", "", nil, http.StatusBadRequest},
		{"unknown rule", http.MethodGet, "/api/v1/fraud/rules/" + uuid.NewString(), "", nil, http.StatusNotFound},
		{"unknown toggle", http.MethodPatch, "/api/v1/fraud/rules/" + uuid.NewString() + "/toggle", "", nil, http.StatusNotFound},
		{"update unknown rule", http.MethodPut, "/api/v1/fraud/rules/" + uuid.NewString(), velocityRuleBody, nil, http.StatusNotFound},
		{"missing name", http.MethodPost, "/api/v1/fraud/rules", strings.Replace(velocityRuleBody, `"rapid orders"`, `""`, 1), nil, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/api/v1/fraud/rules", strings.Replace(velocityRuleBody, `"velocity"`, `"magic"`, 1), nil, http.StatusBadRequest},
		{"bad conditions", http.MethodPost, "/api/v1/fraud/rules", strings.Replace(velocityRuleBody, `"threshold": 5`, `"threshold": 0`, 1), nil, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/fraud/rules", `{"name":"x","colour":"red"}`, nil, http.StatusBadRequest},
		{"duplicate name", http.MethodPost, "/api/v1/fraud/rules", velocityRuleBody, fraud.ErrRuleAlreadyExists, http.StatusConflict},
		{"bad filter", http.MethodGet, "/api/v1/fraud/rules?is_active=maybe", "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.admin.saveErr = tt.saveErr

			rec := f.do(tt.method, tt.path, tt.body, &principal)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAlerts_Review(t *testing.T) {
	f := newFixture(t)
	principal := uuid.New()
	alertID := uuid.New()
	path := "/api/v1/fraud/alerts/" + alertID.String() + "/review"

	rec := f.do(http.MethodPost, path, `{"decision":"confirm","block_user":true,"notes":"chargeback"}`, &principal)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, principal, f.admin.principal)
	assert.Equal(t, fraud.DecisionConfirm, f.admin.review.Decision)
	assert.True(t, f.admin.review.BlockUser)
	assert.Equal(t, "chargeback", f.admin.review.Notes)
	assert.Equal(t, alertID, decode[fraud.FraudAlert](t, rec).ID)
}

func TestAlerts_ReviewErrors(t *testing.T) {
	principal := uuid.New()
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad decision", `{"decision":"maybe"}`, nil, http.StatusBadRequest},
		{"missing decision", `{}`, nil, http.StatusBadRequest},
		{"already reviewed", `{"decision":"dismiss"}`, fraud.ErrAlertAlreadyReviewed, http.StatusConflict},
		{"unknown alert", `{"decision":"dismiss"}`, fraud.ErrAlertNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.admin.alertErr = tt.err

			rec := f.do(http.MethodPost, "/api/v1/fraud/alerts/"+uuid.NewString()+"/review", tt.body, &principal)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAlerts_ListParsesFilter(t *testing.T) {
	f := newFixture(t)
	principal := uuid.New()
	userID := uuid.New()

	rec := f.do(http.MethodGet, "/api/v1/fraud/alerts?status=pending&severity=high&user_id="+userID.String()+"&limit=1000&offset=5", "", &principal)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.admin.filter.Status)
	assert.Equal(t, fraud.AlertPending, *f.admin.filter.Status)
	require.NotNil(t, f.admin.filter.Severity)
	assert.Equal(t, fraud.SeverityHigh, *f.admin.filter.Severity)
	require.NotNil(t, f.admin.filter.UserID)
	assert.Equal(t, userID, *f.admin.filter.UserID)
	assert.Equal(t, 200, f.admin.filter.Limit)
	assert.Equal(t, 5, f.admin.filter.Offset)
	assert.JSONEq(t, `{"items":[],"total":0,"limit":200,"offset":5}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/fraud/alerts?status=open", "", &principal)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/fraud/alerts/"+uuid.NewString(), "", &principal)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_BlockAndUnblock(t *testing.T) {
	f := newFixture(t)
	principal := uuid.New()
	userID := uuid.New()
	base := "/api/v1/fraud/users/" + userID.String()

	rec := f.do(http.MethodPost, base+"/block", `{"reason":"confirmed fraud","unblock_at":"2030-01-01T00:00:00Z"}`, &principal)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[fraud.UserRiskScore](t, rec)
	assert.True(t, profile.IsBlocked)
	require.NotNil(t, profile.UnblockAt)
	assert.Equal(t, 2030, profile.UnblockAt.Year())
	assert.Equal(t, principal, f.admin.principal)
	assert.Equal(t, "confirmed fraud", f.admin.reason)

	rec = f.do(http.MethodPost, base+"/block", `{}`, &principal)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "reason", decode[handler.ErrorResponse](t, rec).Field)

	rec = f.do(http.MethodPost, base+"/unblock", "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[fraud.UserRiskScore](t, rec).IsBlocked)

	rec = f.do(http.MethodGet, base+"/risk", "", &principal)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.admin.profile = &fraud.UserRiskScore{UserID: userID, RiskScore: 40, RiskLevel: fraud.RiskLevelMedium}
	rec = f.do(http.MethodGet, base+"/risk", "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, decode[fraud.UserRiskScore](t, rec).RiskScore)
}

func TestStatisticsAndLogs(t *testing.T) {
	f := newFixture(t)
	principal := uuid.New()

	rec := f.do(http.MethodGet, "/api/v1/fraud/statistics", "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[fraud.Statistics](t, rec).AlertsToday)

	rec = f.do(http.MethodGet, "/api/v1/fraud/logs?decision=review&from=2026-01-01T00:00:00Z", "", &principal)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.admin.logFilter.Decision)
	assert.Equal(t, fraud.RecommendReview, *f.admin.logFilter.Decision)
	require.NotNil(t, f.admin.logFilter.From)
	assert.Equal(t, 50, f.admin.logFilter.Limit)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["total"])

	rec = f.do(http.MethodGet, "/api/v1/fraud/logs?from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z", "", &principal)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.admin.failAll = errors.New("connection reset")
	rec = f.do(http.MethodGet, "/api/v1/fraud/statistics", "", &principal)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode[handler.ErrorResponse](t, rec).Error)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/live", "", nil).Code)

	rec := f.do(http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[handler.HealthResponse](t, rec)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "healthy", ready.Services["database"])

	down := newFixture(t, func(o *router.Options) {
		o.Health = handler.NewHealthHandler("test", map[string]handler.HealthChecker{
			"database": stubPing{},
			"redis":    stubPing{err: errors.New("refused")},
			"kafka":    nil,
		})
	})
	rec = down.do(http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	notReady := decode[handler.HealthResponse](t, rec)
	assert.Equal(t, "not ready", notReady.Status)
	assert.Contains(t, notReady.Services["redis"], "refused")
	assert.NotContains(t, notReady.Services, "kafka")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fraud_degraded_checks_total")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodOptions, "/api/v1/fraud/rules", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), handler.PrincipalHeader)
}

func TestSecurityHeaders(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}
