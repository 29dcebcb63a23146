package fraud

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskLevel represents the severity band of a risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// Recommendation is the decision handed back to the caller
type Recommendation string

const (
	RecommendAllow  Recommendation = "allow"
	RecommendReview Recommendation = "review"
	RecommendBlock  Recommendation = "block"
)

// CheckType identifies the user action being scored
type CheckType string

const (
	CheckOrderCreation CheckType = "order_creation"
	CheckPayment       CheckType = "payment"
	CheckLogin         CheckType = "login"
	CheckAccountUpdate CheckType = "account_update"
)

// Valid reports whether the check type is known
func (c CheckType) Valid() bool {
	switch c {
	case CheckOrderCreation, CheckPayment, CheckLogin, CheckAccountUpdate:
		return true
	}
	return false
}

// Address is a pickup or delivery location
type Address struct {
	Street    string   `json:"street,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// HasCoordinates reports whether both latitude and longitude are set
func (a *Address) HasCoordinates() bool {
	return a != nil && a.Latitude != nil && a.Longitude != nil
}

// OrderDetails describes the order under evaluation
type OrderDetails struct {
	TotalAmount     decimal.Decimal `json:"total_amount"`
	OrderType       string          `json:"order_type" validate:"required"`
	PickupAddress   *Address        `json:"pickup_address,omitempty" validate:"omitempty"`
	DeliveryAddress *Address        `json:"delivery_address,omitempty" validate:"omitempty"`
}

// DeviceInfo carries the client fingerprint and network origin
type DeviceInfo struct {
	Fingerprint string         `json:"fingerprint" validate:"required,max=255"`
	UserAgent   string         `json:"user_agent,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Attributes  map[string]any `json:"device_info,omitempty"`
}

// PaymentInfo describes the payment under evaluation
type PaymentInfo struct {
	Method       string          `json:"method" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	CardLastFour string          `json:"card_last_four,omitempty" validate:"omitempty,len=4,numeric"`
}

// FraudCheckInput is a single request to score a user action
type FraudCheckInput struct {
	UserID       uuid.UUID     `json:"user_id"`
	OrderID      *uuid.UUID    `json:"order_id,omitempty"`
	OrderDetails *OrderDetails `json:"order_details,omitempty" validate:"omitempty"`
	Device       *DeviceInfo   `json:"device,omitempty" validate:"omitempty"`
	Payment      *PaymentInfo  `json:"payment,omitempty" validate:"omitempty"`
	CheckType    CheckType     `json:"check_type" validate:"required"`
}

// IPAddress returns the device IP, or empty
func (in *FraudCheckInput) IPAddress() string {
	if in.Device == nil {
		return ""
	}
	return in.Device.IPAddress
}

// UserAgent returns the device user agent, or empty
func (in *FraudCheckInput) UserAgent() string {
	if in.Device == nil {
		return ""
	}
	return in.Device.UserAgent
}

// FlagCategory names the analyzer that produced a flag
type FlagCategory string

const (
	CategoryVelocity    FlagCategory = "velocity"
	CategoryGeolocation FlagCategory = "geolocation"
	CategoryDevice      FlagCategory = "device"
	CategoryPayment     FlagCategory = "payment"
	CategoryBehavior    FlagCategory = "behavior"
	CategorySystem      FlagCategory = "system"
)

// Flag names emitted by the analyzers
const (
	FlagHighOrderVelocity         = "high_order_velocity"
	FlagHighPaymentVelocity       = "high_payment_velocity"
	FlagExcessiveDeliveryDistance = "excessive_delivery_distance"
	FlagVPNDetected               = "vpn_detected"
	FlagProxyDetected             = "proxy_detected"
	FlagCountryNotAllowed         = "country_not_allowed"
	FlagMultipleAccountsOnDevice  = "multiple_accounts_on_device"
	FlagNewDevice                 = "new_device"
	FlagDeviceChange              = "device_change"
	FlagExcessiveFailedPayments   = "excessive_failed_payments"
	FlagSmallTransaction          = "small_transaction"
	FlagLargeTransaction          = "large_transaction"
	FlagNewAccount                = "new_account"
	FlagHighRefundRate            = "high_refund_rate"
	FlagUnusualOrderAmount        = "unusual_order_amount"
	FlagSystemError               = "system_error"
)

// FraudFlag is one fired signal
type FraudFlag struct {
	Name        string       `json:"name"`
	Category    FlagCategory `json:"category"`
	Score       int          `json:"score"`
	Severity    Severity     `json:"severity"`
	Description string       `json:"description"`
	RuleID      *uuid.UUID   `json:"rule_id,omitempty"`
}

// NewRuleFlag builds a flag attributed to the rule that fired it
func NewRuleFlag(rule *FraudRule, name string, category FlagCategory, description string) FraudFlag {
	id := rule.ID
	return FraudFlag{
		Name:        name,
		Category:    category,
		Score:       rule.ScoreImpact,
		Severity:    rule.Severity,
		Description: description,
		RuleID:      &id,
	}
}

// FraudCheckResult is the outcome returned to the caller
type FraudCheckResult struct {
	CheckID          uuid.UUID      `json:"check_id"`
	RiskScore        int            `json:"risk_score"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	Recommendation   Recommendation `json:"recommendation"`
	Flags            []FraudFlag    `json:"flags"`
	TriggeredRules   []uuid.UUID    `json:"triggered_rules"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	AlertID          *uuid.UUID     `json:"alert_id,omitempty"`
	Degraded         bool           `json:"degraded,omitempty"`
}

// FlagNames lists the names of the fired flags in order
func (r *FraudCheckResult) FlagNames() []string {
	names := make([]string, 0, len(r.Flags))
	for _, f := range r.Flags {
		names = append(names, f.Name)
	}
	return names
}

// HasFlag reports whether a flag with the given name fired
func (r *FraudCheckResult) HasFlag(name string) bool {
	for _, f := range r.Flags {
		if f.Name == name {
			return true
		}
	}
	return false
}

// RiskFactor is one contributor to a user's current score
type RiskFactor struct {
	Name        string  `json:"name"`
	Score       int     `json:"score"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// UserRiskScore is the persisted per-user risk baseline
type UserRiskScore struct {
	ID                  uuid.UUID    `json:"id"`
	UserID              uuid.UUID    `json:"user_id"`
	RiskScore           int          `json:"risk_score"`
	RiskLevel           RiskLevel    `json:"risk_level"`
	Factors             []RiskFactor `json:"factors"`
	FlagCount           int          `json:"flag_count"`
	ConfirmedFraudCount int          `json:"confirmed_fraud_count"`
	DismissedAlertCount int          `json:"dismissed_alert_count"`

	IsBlocked     bool       `json:"is_blocked"`
	BlockedAt     *time.Time `json:"blocked_at,omitempty"`
	BlockedBy     *uuid.UUID `json:"blocked_by,omitempty"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	UnblockAt     *time.Time `json:"unblock_at,omitempty"`

	LastCalculated time.Time `json:"last_calculated"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUserRiskScore creates a fresh low-risk profile
func NewUserRiskScore(userID uuid.UUID) *UserRiskScore {
	now := time.Now().UTC()
	return &UserRiskScore{
		ID:             uuid.New(),
		UserID:         userID,
		RiskScore:      0,
		RiskLevel:      RiskLevelLow,
		Factors:        []RiskFactor{},
		LastCalculated: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ApplyCheck overwrites the score, level and factors from a completed check
func (p *UserRiskScore) ApplyCheck(result *FraudCheckResult, at time.Time) {
	p.RiskScore = result.RiskScore
	p.RiskLevel = result.RiskLevel
	p.Factors = FactorsFromFlags(result.Flags)
	if len(result.Flags) > 0 {
		p.FlagCount++
	}
	p.LastCalculated = at
	p.UpdatedAt = at
}

// FactorsFromFlags weights each flag by its share of the total flag score
func FactorsFromFlags(flags []FraudFlag) []RiskFactor {
	total := 0
	for _, f := range flags {
		total += f.Score
	}
	factors := make([]RiskFactor, 0, len(flags))
	for _, f := range flags {
		weight := 0.0
		if total > 0 {
			weight = float64(f.Score) / float64(total)
		}
		factors = append(factors, RiskFactor{
			Name:        f.Name,
			Score:       f.Score,
			Weight:      weight,
			Description: f.Description,
		})
	}
	return factors
}

// AlertStatus tracks the review state of an alert
type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertDismissed AlertStatus = "dismissed"
	AlertConfirmed AlertStatus = "confirmed"
)

// ReviewDecision is the reviewer's verdict on an alert
type ReviewDecision string

const (
	DecisionDismiss ReviewDecision = "dismiss"
	DecisionConfirm ReviewDecision = "confirm"
)

// Status maps a decision to the terminal alert status
func (d ReviewDecision) Status() (AlertStatus, error) {
	switch d {
	case DecisionDismiss:
		return AlertDismissed, nil
	case DecisionConfirm:
		return AlertConfirmed, nil
	}
	return "", ErrInvalidReviewDecision
}

// AlertDetails is the evidence captured when the alert was raised
type AlertDetails struct {
	Flags          []FraudFlag      `json:"flags"`
	TriggeredRules []uuid.UUID      `json:"triggered_rules"`
	Input          *FraudCheckInput `json:"input,omitempty"`
	Degraded       bool             `json:"degraded,omitempty"`
}

// FraudAlert is a reviewable record of a non-allow decision
type FraudAlert struct {
	ID        uuid.UUID    `json:"id"`
	CheckID   uuid.UUID    `json:"check_id"`
	UserID    uuid.UUID    `json:"user_id"`
	OrderID   *uuid.UUID   `json:"order_id,omitempty"`
	RuleID    *uuid.UUID   `json:"rule_id,omitempty"`
	AlertType FlagCategory `json:"alert_type"`
	Severity  Severity     `json:"severity"`
	Details   AlertDetails `json:"details"`
	RiskScore int          `json:"risk_score"`
	Status    AlertStatus  `json:"status"`

	ReviewedBy      *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	UserBlocked     bool       `json:"user_blocked"`
	OrderCancelled  bool       `json:"order_cancelled"`
	RefundIssued    bool       `json:"refund_issued"`

	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAlertFromResult builds a pending alert for a non-allow check result.
// Type, severity and rule come from the highest-scoring flag.
func NewAlertFromResult(input *FraudCheckInput, result *FraudCheckResult, at time.Time) *FraudAlert {
	alert := &FraudAlert{
		ID:        uuid.New(),
		CheckID:   result.CheckID,
		UserID:    input.UserID,
		OrderID:   input.OrderID,
		AlertType: CategoryBehavior,
		Severity:  severityForLevel(result.RiskLevel),
		Details: AlertDetails{
			Flags:          result.Flags,
			TriggeredRules: result.TriggeredRules,
			Input:          input,
			Degraded:       result.Degraded,
		},
		RiskScore: result.RiskScore,
		Status:    AlertPending,
		IPAddress: input.IPAddress(),
		UserAgent: input.UserAgent(),
		CreatedAt: at,
		UpdatedAt: at,
	}
	if top := topFlag(result.Flags); top != nil {
		if top.Category != "" {
			alert.AlertType = top.Category
		}
		if top.Severity.Valid() {
			alert.Severity = top.Severity
		}
		alert.RuleID = top.RuleID
	}
	return alert
}

// IsPending reports whether the alert still awaits review
func (a *FraudAlert) IsPending() bool {
	return a.Status == AlertPending
}

func topFlag(flags []FraudFlag) *FraudFlag {
	var top *FraudFlag
	for i := range flags {
		if top == nil || flags[i].Score > top.Score {
			top = &flags[i]
		}
	}
	return top
}

func severityForLevel(level RiskLevel) Severity {
	switch level {
	case RiskLevelCritical:
		return SeverityCritical
	case RiskLevelHigh:
		return SeverityHigh
	case RiskLevelMedium:
		return SeverityMedium
	}
	return SeverityLow
}

// ReviewInput is the reviewer's decision and requested side effects
type ReviewInput struct {
	Decision    ReviewDecision `json:"decision"`
	BlockUser   bool           `json:"block_user"`
	CancelOrder bool           `json:"cancel_order"`
	IssueRefund bool           `json:"issue_refund"`
	Notes       string         `json:"notes,omitempty"`
}

// ReviewOutcome is what storage applied for a review
type ReviewOutcome struct {
	Alert       *FraudAlert
	UserBlocked bool
}

// AlertFilter narrows an alert listing
type AlertFilter struct {
	Status   *AlertStatus
	Severity *Severity
	UserID   *uuid.UUID
	Limit    int
	Offset   int
}

// DeviceFingerprint records a (user, device) pairing
type DeviceFingerprint struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	FingerprintHash string         `json:"fingerprint_hash"`
	DeviceInfo      map[string]any `json:"device_info,omitempty"`
	IPAddress       string         `json:"ip_address,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	FirstSeen       time.Time      `json:"first_seen"`
	LastSeen        time.Time      `json:"last_seen"`
	SessionCount    int            `json:"session_count"`
}

// FraudCheckLog is the immutable audit record of one check
type FraudCheckLog struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	OrderID          *uuid.UUID       `json:"order_id,omitempty"`
	CheckType        CheckType        `json:"check_type"`
	Input            *FraudCheckInput `json:"input"`
	RiskScore        int              `json:"risk_score"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	Decision         Recommendation   `json:"decision"`
	TriggeredRules   []uuid.UUID      `json:"triggered_rules"`
	Flags            []string         `json:"flags"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	IPAddress        string           `json:"ip_address,omitempty"`
	UserAgent        string           `json:"user_agent,omitempty"`
	Fingerprint      string           `json:"fingerprint,omitempty"`
	Degraded         bool             `json:"degraded"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NewCheckLog builds the audit record for a completed check
func NewCheckLog(input *FraudCheckInput, result *FraudCheckResult, at time.Time) *FraudCheckLog {
	log := &FraudCheckLog{
		ID:               result.CheckID,
		UserID:           input.UserID,
		OrderID:          input.OrderID,
		CheckType:        input.CheckType,
		Input:            input,
		RiskScore:        result.RiskScore,
		RiskLevel:        result.RiskLevel,
		Decision:         result.Recommendation,
		TriggeredRules:   result.TriggeredRules,
		Flags:            result.FlagNames(),
		ProcessingTimeMs: result.ProcessingTimeMs,
		IPAddress:        input.IPAddress(),
		UserAgent:        input.UserAgent(),
		Degraded:         result.Degraded,
		CreatedAt:        at,
	}
	if input.Device != nil {
		log.Fingerprint = input.Device.Fingerprint
	}
	return log
}

// CheckLogFilter narrows an audit log query
type CheckLogFilter struct {
	UserID   *uuid.UUID
	Decision *Recommendation
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// IPIntelligence is a cached reputation verdict for one IP
type IPIntelligence struct {
	IPAddress string    `json:"ip_address"`
	IsVPN     bool      `json:"is_vpn"`
	IsProxy   bool      `json:"is_proxy"`
	Country   string    `json:"country,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is stale at t
func (i *IPIntelligence) Expired(t time.Time) bool {
	return !t.Before(i.ExpiresAt)
}
