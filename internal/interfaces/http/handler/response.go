package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fraud-risk-engine/internal/domain/activity"
	"fraud-risk-engine/internal/domain/fraud"
)

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps service errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 without internals.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *fraud.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fraud.ErrInvalidInput),
		errors.Is(err, fraud.ErrInvalidCheckType),
		errors.Is(err, fraud.ErrInvalidRuleType),
		errors.Is(err, fraud.ErrInvalidRuleSeverity),
		errors.Is(err, fraud.ErrInvalidRuleAction),
		errors.Is(err, fraud.ErrRuleConditionsInvalid),
		errors.Is(err, fraud.ErrInvalidScoreImpact),
		errors.Is(err, fraud.ErrInvalidReviewDecision):
		return http.StatusBadRequest
	case errors.Is(err, fraud.ErrRuleNotFound),
		errors.Is(err, fraud.ErrAlertNotFound),
		errors.Is(err, fraud.ErrRiskProfileNotFound),
		errors.Is(err, activity.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, fraud.ErrAlertAlreadyReviewed),
		errors.Is(err, fraud.ErrInvalidAlertTransition),
		errors.Is(err, fraud.ErrRuleAlreadyExists),
		errors.Is(err, fraud.ErrConcurrentUpdate):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
