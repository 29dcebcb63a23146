package fraud

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType categorizes a fraud rule and selects its conditions shape
type RuleType string

const (
	RuleTypeVelocity    RuleType = "velocity"
	RuleTypeGeolocation RuleType = "geolocation"
	RuleTypeDevice      RuleType = "device"
	RuleTypePayment     RuleType = "payment"
	RuleTypeBehavior    RuleType = "behavior"
	RuleTypeIdentity    RuleType = "identity"
)

// Valid reports whether the rule type is known
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeVelocity, RuleTypeGeolocation, RuleTypeDevice,
		RuleTypePayment, RuleTypeBehavior, RuleTypeIdentity:
		return true
	}
	return false
}

// Severity indicates how serious a rule violation is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is known
func (s Severity) Valid() bool {
	return s.rank() > 0
}

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// MoreSevereThan compares two severities
func (s Severity) MoreSevereThan(other Severity) bool {
	return s.rank() > other.rank()
}

// RuleAction is the admin-declared intent of a rule. It is informational;
// the recommendation is always derived from the aggregated score.
type RuleAction string

const (
	ActionFlag   RuleAction = "flag"
	ActionReview RuleAction = "review"
	ActionBlock  RuleAction = "block"
	ActionAlert  RuleAction = "alert"
)

// Valid reports whether the action is known
func (a RuleAction) Valid() bool {
	switch a {
	case ActionFlag, ActionReview, ActionBlock, ActionAlert:
		return true
	}
	return false
}

// FraudRule is an admin-configured condition set that drives one analyzer
type FraudRule struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        RuleType   `json:"rule_type"`
	Conditions  Conditions `json:"conditions"`
	Action      RuleAction `json:"action"`
	Severity    Severity   `json:"severity"`
	ScoreImpact int        `json:"score_impact"`
	IsActive    bool       `json:"is_active"`

	ApplicableOrderTypes []string `json:"applicable_order_types,omitempty"`
	ApplicableUserRoles  []string `json:"applicable_user_roles,omitempty"`

	// Feedback counters, maintained by the engine and the review workflow
	TriggerCount       int64      `json:"trigger_count"`
	FalsePositiveCount int64      `json:"false_positive_count"`
	LastTriggeredAt    *time.Time `json:"last_triggered_at,omitempty"`

	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewRule creates an active rule with a fresh ID
func NewRule(name string, ruleType RuleType, conditions Conditions, severity Severity, scoreImpact int) *FraudRule {
	now := time.Now().UTC()
	return &FraudRule{
		ID:          uuid.New(),
		Name:        name,
		Type:        ruleType,
		Conditions:  conditions,
		Action:      ActionFlag,
		Severity:    severity,
		ScoreImpact: scoreImpact,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the rule and its conditions variant
func (r *FraudRule) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "is required")
	}
	if !r.Type.Valid() {
		return ErrInvalidRuleType
	}
	if !r.Severity.Valid() {
		return ErrInvalidRuleSeverity
	}
	if r.Action != "" && !r.Action.Valid() {
		return ErrInvalidRuleAction
	}
	if r.ScoreImpact < 0 || r.ScoreImpact > MaxRiskScore {
		return ErrInvalidScoreImpact
	}
	if r.Conditions == nil {
		return fmt.Errorf("%w: missing conditions", ErrRuleConditionsInvalid)
	}
	if r.Conditions.RuleType() != r.Type {
		return fmt.Errorf("%w: %s conditions on a %s rule", ErrRuleConditionsInvalid, r.Conditions.RuleType(), r.Type)
	}
	if err := r.Conditions.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrRuleConditionsInvalid, err)
	}
	return nil
}

// AppliesTo reports whether the rule's order-type and role filters admit the check
func (r *FraudRule) AppliesTo(input *FraudCheckInput, userRole string) bool {
	if len(r.ApplicableOrderTypes) > 0 {
		if input.OrderDetails == nil || !slices.Contains(r.ApplicableOrderTypes, input.OrderDetails.OrderType) {
			return false
		}
	}
	if len(r.ApplicableUserRoles) > 0 && !slices.Contains(r.ApplicableUserRoles, userRole) {
		return false
	}
	return true
}

// UnmarshalJSON decodes conditions according to the rule type
func (r *FraudRule) UnmarshalJSON(data []byte) error {
	type ruleAlias FraudRule
	aux := struct {
		*ruleAlias
		Conditions json.RawMessage `json:"conditions"`
	}{ruleAlias: (*ruleAlias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Conditions) == 0 || string(aux.Conditions) == "null" {
		r.Conditions = nil
		return nil
	}
	conditions, err := DecodeConditions(r.Type, aux.Conditions)
	if err != nil {
		return err
	}
	r.Conditions = conditions
	return nil
}

// Conditions is the tagged union of per-type rule condition shapes.
// Each analyzer type-asserts only its own variant.
type Conditions interface {
	RuleType() RuleType
	Validate() error
}

// DecodeConditions decodes raw JSON into the variant selected by ruleType
func DecodeConditions(ruleType RuleType, raw []byte) (Conditions, error) {
	var target Conditions
	switch ruleType {
	case RuleTypeVelocity:
		target = &VelocityConditions{}
	case RuleTypeGeolocation:
		target = &GeolocationConditions{}
	case RuleTypeDevice:
		target = &DeviceConditions{}
	case RuleTypePayment:
		target = &PaymentConditions{}
	case RuleTypeBehavior:
		target = &BehaviorConditions{}
	case RuleTypeIdentity:
		target = &IdentityConditions{}
	default:
		return nil, ErrInvalidRuleType
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRuleConditionsInvalid, err)
		}
	}
	return target, nil
}

// VelocityMetric selects which events a velocity rule counts
type VelocityMetric string

const (
	MetricOrdersPerHour   VelocityMetric = "orders_per_hour"
	MetricPaymentAttempts VelocityMetric = "payment_attempts"
)

// VelocityConditions configures an event-rate check
type VelocityConditions struct {
	Metric            VelocityMetric `json:"metric"`
	Threshold         int            `json:"threshold"`
	TimeWindowSeconds int            `json:"time_window_seconds"`
	Scope             string         `json:"scope,omitempty"`
}

func (c *VelocityConditions) RuleType() RuleType { return RuleTypeVelocity }

func (c *VelocityConditions) Validate() error {
	if c.Metric != MetricOrdersPerHour && c.Metric != MetricPaymentAttempts {
		return fmt.Errorf("unknown velocity metric %q", c.Metric)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}
	if c.TimeWindowSeconds <= 0 {
		return fmt.Errorf("time_window_seconds must be positive")
	}
	return nil
}

// Window returns the counting window
func (c *VelocityConditions) Window() time.Duration {
	return time.Duration(c.TimeWindowSeconds) * time.Second
}

// GeolocationConditions configures distance and IP-reputation checks
type GeolocationConditions struct {
	MaxDistanceKm    *float64 `json:"max_distance_km,omitempty"`
	CheckVPN         bool     `json:"check_vpn,omitempty"`
	CheckProxy       bool     `json:"check_proxy,omitempty"`
	AllowedCountries []string `json:"allowed_countries,omitempty"`
}

func (c *GeolocationConditions) RuleType() RuleType { return RuleTypeGeolocation }

func (c *GeolocationConditions) Validate() error {
	if c.MaxDistanceKm != nil && *c.MaxDistanceKm <= 0 {
		return fmt.Errorf("max_distance_km must be positive")
	}
	return nil
}

// NeedsIPIntelligence reports whether the rule consults the IP cache
func (c *GeolocationConditions) NeedsIPIntelligence() bool {
	return c.CheckVPN || c.CheckProxy || len(c.AllowedCountries) > 0
}

// DeviceConditions configures fingerprint checks
type DeviceConditions struct {
	MaxAccountsPerDevice *int  `json:"max_accounts_per_device,omitempty"`
	TrustNewDevices      *bool `json:"trust_new_devices,omitempty"`
	FlagDeviceChanges    bool  `json:"flag_device_changes,omitempty"`
}

func (c *DeviceConditions) RuleType() RuleType { return RuleTypeDevice }

func (c *DeviceConditions) Validate() error {
	if c.MaxAccountsPerDevice != nil && *c.MaxAccountsPerDevice <= 0 {
		return fmt.Errorf("max_accounts_per_device must be positive")
	}
	return nil
}

// DefaultPaymentWindow applies when a payment rule sets no window
const DefaultPaymentWindow = 24 * time.Hour

// PaymentConditions configures failed-attempt and amount checks
type PaymentConditions struct {
	MaxFailedAttempts     *int             `json:"max_failed_attempts,omitempty"`
	MinTransactionAmount  *decimal.Decimal `json:"min_transaction_amount,omitempty"`
	MaxTransactionAmount  *decimal.Decimal `json:"max_transaction_amount,omitempty"`
	FlagSmallTransactions bool             `json:"flag_small_transactions,omitempty"`
	TimeWindowSeconds     *int             `json:"time_window_seconds,omitempty"`
}

func (c *PaymentConditions) RuleType() RuleType { return RuleTypePayment }

func (c *PaymentConditions) Validate() error {
	if c.MaxFailedAttempts != nil && *c.MaxFailedAttempts <= 0 {
		return fmt.Errorf("max_failed_attempts must be positive")
	}
	if c.TimeWindowSeconds != nil && *c.TimeWindowSeconds <= 0 {
		return fmt.Errorf("time_window_seconds must be positive")
	}
	if c.MinTransactionAmount != nil && c.MinTransactionAmount.IsNegative() {
		return fmt.Errorf("min_transaction_amount cannot be negative")
	}
	if c.MaxTransactionAmount != nil && c.MaxTransactionAmount.IsNegative() {
		return fmt.Errorf("max_transaction_amount cannot be negative")
	}
	return nil
}

// Window returns the failed-payment counting window
func (c *PaymentConditions) Window() time.Duration {
	if c.TimeWindowSeconds == nil {
		return DefaultPaymentWindow
	}
	return time.Duration(*c.TimeWindowSeconds) * time.Second
}

// BehaviorConditions configures account-history checks
type BehaviorConditions struct {
	MinAccountAgeDays    *int     `json:"min_account_age_days,omitempty"`
	MaxRefundRatePercent *float64 `json:"max_refund_rate_percent,omitempty"`
	UnusualOrderPatterns bool     `json:"unusual_order_patterns,omitempty"`
}

func (c *BehaviorConditions) RuleType() RuleType { return RuleTypeBehavior }

func (c *BehaviorConditions) Validate() error {
	if c.MinAccountAgeDays != nil && *c.MinAccountAgeDays < 0 {
		return fmt.Errorf("min_account_age_days cannot be negative")
	}
	if c.MaxRefundRatePercent != nil && (*c.MaxRefundRatePercent < 0 || *c.MaxRefundRatePercent > 100) {
		return fmt.Errorf("max_refund_rate_percent must be between 0 and 100")
	}
	return nil
}

// IdentityConditions are accepted and stored; no analyzer evaluates them yet.
type IdentityConditions struct{}

func (c *IdentityConditions) RuleType() RuleType { return RuleTypeIdentity }

func (c *IdentityConditions) Validate() error { return nil }

// RuleFilter narrows a rule listing
type RuleFilter struct {
	IsActive *bool
}
