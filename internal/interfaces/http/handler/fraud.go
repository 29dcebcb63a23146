package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/application/dto"
	"fraud-risk-engine/internal/domain/fraud"
)

// FraudAdmin is the administration surface used by the admin endpoints
type FraudAdmin interface {
	ListRules(ctx context.Context, isActive *bool) ([]*fraud.FraudRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*fraud.FraudRule, error)
	SaveRule(ctx context.Context, rule *fraud.FraudRule) error
	ToggleRule(ctx context.Context, id uuid.UUID) (*fraud.FraudRule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error

	ListAlerts(ctx context.Context, filter fraud.AlertFilter) ([]*fraud.FraudAlert, int64, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*fraud.FraudAlert, error)
	ReviewAlert(ctx context.Context, id, reviewerID uuid.UUID, input fraud.ReviewInput) (*fraud.FraudAlert, error)

	GetUserRiskProfile(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskScore, error)
	BlockUser(ctx context.Context, userID, blockedBy uuid.UUID, reason string, unblockAt *time.Time) (*fraud.UserRiskScore, error)
	UnblockUser(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskScore, error)

	GetStatistics(ctx context.Context, now time.Time) (*fraud.Statistics, error)
	ListCheckLogs(ctx context.Context, filter fraud.CheckLogFilter) ([]*fraud.FraudCheckLog, int64, error)
}

// FraudHandler handles the admin endpoints. Every route sits behind
// RequirePrincipal.
type FraudHandler struct {
	admin  FraudAdmin
	logger *zap.Logger
	now    func() time.Time
}

// NewFraudHandler creates a new fraud handler
func NewFraudHandler(admin FraudAdmin, logger *zap.Logger) *FraudHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FraudHandler{
		admin:  admin,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListRules handles GET /api/v1/fraud/rules
func (h *FraudHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	isActive, err := dto.ParseRuleFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	rules, err := h.admin.ListRules(r.Context(), isActive)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if rules == nil {
		rules = []*fraud.FraudRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// CreateRule handles POST /api/v1/fraud/rules
func (h *FraudHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req dto.RuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	principal, _ := PrincipalFrom(r.Context())
	rule, err := req.ToRule(principal)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := h.admin.SaveRule(r.Context(), rule); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("rule_type", string(rule.Type)),
		zap.String("principal_id", principal.String()))
	writeJSON(w, http.StatusCreated, rule)
}

// GetRule handles GET /api/v1/fraud/rules/{id}
func (h *FraudHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Rule")
	if !ok {
		return
	}

	rule, err := h.admin.GetRule(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// UpdateRule handles PUT /api/v1/fraud/rules/{id}
func (h *FraudHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Rule")
	if !ok {
		return
	}

	var req dto.RuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rule, err := h.admin.GetRule(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := req.ApplyTo(rule); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := h.admin.SaveRule(r.Context(), rule); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/fraud/rules/{id}
func (h *FraudHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Rule")
	if !ok {
		return
	}

	if err := h.admin.DeleteRule(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRule handles PATCH /api/v1/fraud/rules/{id}/toggle
func (h *FraudHandler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Rule")
	if !ok {
		return
	}

	rule, err := h.admin.ToggleRule(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ListAlerts handles GET /api/v1/fraud/alerts
func (h *FraudHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, err := dto.ParseAlertFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	alerts, total, err := h.admin.ListAlerts(r.Context(), filter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewPage(alerts, total, filter.Limit, filter.Offset))
}

// GetAlert handles GET /api/v1/fraud/alerts/{id}
func (h *FraudHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Alert")
	if !ok {
		return
	}

	alert, err := h.admin.GetAlert(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ReviewAlert handles POST /api/v1/fraud/alerts/{id}/review
func (h *FraudHandler) ReviewAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Alert")
	if !ok {
		return
	}

	var req dto.ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	input, err := req.ToInput()
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	principal, _ := PrincipalFrom(r.Context())
	alert, err := h.admin.ReviewAlert(r.Context(), id, principal, input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// GetUserRisk handles GET /api/v1/fraud/users/{id}/risk
func (h *FraudHandler) GetUserRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "User")
	if !ok {
		return
	}

	profile, err := h.admin.GetUserRiskProfile(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// BlockUser handles POST /api/v1/fraud/users/{id}/block
func (h *FraudHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "User")
	if !ok {
		return
	}

	var req dto.BlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	principal, _ := PrincipalFrom(r.Context())
	profile, err := h.admin.BlockUser(r.Context(), id, principal, req.Reason, req.UnblockAt)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UnblockUser handles POST /api/v1/fraud/users/{id}/unblock
func (h *FraudHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "User")
	if !ok {
		return
	}

	profile, err := h.admin.UnblockUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Statistics handles GET /api/v1/fraud/statistics
func (h *FraudHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.GetStatistics(r.Context(), h.now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListCheckLogs handles GET /api/v1/fraud/logs
func (h *FraudHandler) ListCheckLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := dto.ParseCheckLogFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	logs, total, err := h.admin.ListCheckLogs(r.Context(), filter)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewPage(logs, total, filter.Limit, filter.Offset))
}

// pathID parses the {id} URL parameter, answering 400 itself on failure
func pathID(w http.ResponseWriter, r *http.Request, resource string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		writeError(w, http.StatusBadRequest, resource+" ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+resource+" ID")
		return uuid.Nil, false
	}
	return id, true
}
