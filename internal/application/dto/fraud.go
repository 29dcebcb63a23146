package dto

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/fraud"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// RuleRequest is the body of a rule create or update
type RuleRequest struct {
	Name                 string           `json:"name" validate:"required,max=100"`
	Description          string           `json:"description" validate:"max=1000"`
	RuleType             fraud.RuleType   `json:"rule_type" validate:"required"`
	Conditions           json.RawMessage  `json:"conditions" validate:"required"`
	Action               fraud.RuleAction `json:"action"`
	Severity             fraud.Severity   `json:"severity" validate:"required"`
	ScoreImpact          int              `json:"score_impact" validate:"min=0,max=100"`
	IsActive             *bool            `json:"is_active"`
	ApplicableOrderTypes []string         `json:"applicable_order_types" validate:"omitempty,dive,required"`
	ApplicableUserRoles  []string         `json:"applicable_user_roles" validate:"omitempty,dive,required"`
}

// ToRule builds a new rule owned by createdBy
func (r *RuleRequest) ToRule(createdBy uuid.UUID) (*fraud.FraudRule, error) {
	rule := &fraud.FraudRule{IsActive: true, CreatedBy: &createdBy}
	if err := r.ApplyTo(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ApplyTo overwrites the editable fields of rule. Feedback counters and
// audit fields are left alone.
func (r *RuleRequest) ApplyTo(rule *fraud.FraudRule) error {
	if err := fraud.ValidateStruct(r); err != nil {
		return err
	}
	conditions, err := fraud.DecodeConditions(r.RuleType, r.Conditions)
	if err != nil {
		return err
	}

	rule.Name = r.Name
	rule.Description = r.Description
	rule.Type = r.RuleType
	rule.Conditions = conditions
	rule.Action = r.Action
	rule.Severity = r.Severity
	rule.ScoreImpact = r.ScoreImpact
	rule.ApplicableOrderTypes = r.ApplicableOrderTypes
	rule.ApplicableUserRoles = r.ApplicableUserRoles
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	return nil
}

// ReviewRequest is the body of an alert review
type ReviewRequest struct {
	Decision    string `json:"decision" validate:"required,oneof=dismiss confirm"`
	BlockUser   bool   `json:"block_user"`
	CancelOrder bool   `json:"cancel_order"`
	IssueRefund bool   `json:"issue_refund"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// ToInput converts the request to a review input
func (r *ReviewRequest) ToInput() (fraud.ReviewInput, error) {
	if err := fraud.ValidateStruct(r); err != nil {
		return fraud.ReviewInput{}, err
	}
	return fraud.ReviewInput{
		Decision:    fraud.ReviewDecision(r.Decision),
		BlockUser:   r.BlockUser,
		CancelOrder: r.CancelOrder,
		IssueRefund: r.IssueRefund,
		Notes:       r.Notes,
	}, nil
}

// BlockRequest is the body of a user block
type BlockRequest struct {
	Reason    string     `json:"reason" validate:"required,max=500"`
	UnblockAt *time.Time `json:"unblock_at"`
}

// Validate checks the block request
func (r *BlockRequest) Validate() error {
	return fraud.ValidateStruct(r)
}

// Page wraps one page of a listing
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewPage builds a page, never returning a null item list
func NewPage[T any](items []T, total int64, limit, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Limit: limit, Offset: offset}
}

// ParseRuleFilter reads ?is_active=
func ParseRuleFilter(q url.Values) (*bool, error) {
	raw := q.Get("is_active")
	if raw == "" {
		return nil, nil
	}
	active, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fraud.NewValidationError("is_active", "must be a boolean")
	}
	return &active, nil
}

// ParseAlertFilter reads ?status=&severity=&user_id=&limit=&offset=
func ParseAlertFilter(q url.Values) (fraud.AlertFilter, error) {
	var filter fraud.AlertFilter
	var err error

	if raw := q.Get("status"); raw != "" {
		status := fraud.AlertStatus(raw)
		switch status {
		case fraud.AlertPending, fraud.AlertDismissed, fraud.AlertConfirmed:
		default:
			return filter, fraud.NewValidationError("status", "must be pending, dismissed or confirmed")
		}
		filter.Status = &status
	}
	if raw := q.Get("severity"); raw != "" {
		severity := fraud.Severity(raw)
		if !severity.Valid() {
			return filter, fraud.NewValidationError("severity", fraud.ErrInvalidRuleSeverity.Error())
		}
		filter.Severity = &severity
	}
	if filter.UserID, err = parseOptionalUUID(q, "user_id"); err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset, err = parsePage(q)
	return filter, err
}

// ParseCheckLogFilter reads ?user_id=&decision=&from=&to=&limit=&offset=
func ParseCheckLogFilter(q url.Values) (fraud.CheckLogFilter, error) {
	var filter fraud.CheckLogFilter
	var err error

	if filter.UserID, err = parseOptionalUUID(q, "user_id"); err != nil {
		return filter, err
	}
	if raw := q.Get("decision"); raw != "" {
		decision := fraud.Recommendation(raw)
		switch decision {
		case fraud.RecommendAllow, fraud.RecommendReview, fraud.RecommendBlock:
		default:
			return filter, fraud.NewValidationError("decision", "must be allow, review or block")
		}
		filter.Decision = &decision
	}
	if filter.From, err = parseOptionalTime(q, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseOptionalTime(q, "to"); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, fraud.NewValidationError("to", "must not be before from")
	}
	filter.Limit, filter.Offset, err = parsePage(q)
	return filter, err
}

func parsePage(q url.Values) (int, int, error) {
	limit, offset := defaultPageLimit, 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return 0, 0, fraud.NewValidationError("limit", "must be a positive integer")
		}
		limit = min(n, maxPageLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, fraud.NewValidationError("offset", "must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}

func parseOptionalUUID(q url.Values, key string) (*uuid.UUID, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fraud.NewValidationError(key, "must be a UUID")
	}
	return &id, nil
}

func parseOptionalTime(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fraud.NewValidationError(key, "must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}
