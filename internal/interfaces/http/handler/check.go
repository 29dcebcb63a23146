package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"fraud-risk-engine/internal/domain/fraud"
)

// FraudChecker scores one check
type FraudChecker interface {
	Execute(ctx context.Context, input *fraud.FraudCheckInput) (*fraud.FraudCheckResult, error)
}

// CheckHandler serves the scoring endpoint
type CheckHandler struct {
	checker FraudChecker
	logger  *zap.Logger
}

// NewCheckHandler creates a new check handler
func NewCheckHandler(checker FraudChecker, logger *zap.Logger) *CheckHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckHandler{checker: checker, logger: logger}
}

// Check handles POST /api/v1/fraud/check. A degraded result is still a 200.
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	var input fraud.FraudCheckInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.checker.Execute(r.Context(), &input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
