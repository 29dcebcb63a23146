package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RuleRepository manages fraud rules
type RuleRepository interface {
	// List returns rules, optionally filtered by active state
	List(ctx context.Context, filter RuleFilter) ([]*FraudRule, error)

	// ListActive returns every active rule
	ListActive(ctx context.Context) ([]*FraudRule, error)

	// GetByID retrieves a rule by ID
	GetByID(ctx context.Context, id uuid.UUID) (*FraudRule, error)

	// Save creates or updates a rule by ID
	Save(ctx context.Context, rule *FraudRule) error

	// Toggle flips a rule's active flag and returns the updated rule
	Toggle(ctx context.Context, id uuid.UUID) (*FraudRule, error)

	// Delete removes a rule
	Delete(ctx context.Context, id uuid.UUID) error
}

// AlertRepository manages fraud alerts and their review
type AlertRepository interface {
	// GetByID retrieves an alert by ID
	GetByID(ctx context.Context, id uuid.UUID) (*FraudAlert, error)

	// List returns matching alerts newest first, with the total match count
	List(ctx context.Context, filter AlertFilter) ([]*FraudAlert, int64, error)

	// Review resolves a pending alert and applies the profile and rule
	// counter updates in a single transaction
	Review(ctx context.Context, id, reviewerID uuid.UUID, input ReviewInput, at time.Time) (*ReviewOutcome, error)
}

// RiskProfileRepository manages per-user risk baselines
type RiskProfileRepository interface {
	// GetByUserID retrieves a user's profile
	GetByUserID(ctx context.Context, userID uuid.UUID) (*UserRiskScore, error)

	// GetOrCreate returns the user's profile, creating a low-risk one if absent
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*UserRiskScore, error)

	// Block marks the user blocked, creating a critical profile if absent
	Block(ctx context.Context, userID, blockedBy uuid.UUID, reason string, unblockAt *time.Time, at time.Time) (*UserRiskScore, error)

	// Unblock clears every block field
	Unblock(ctx context.Context, userID uuid.UUID, at time.Time) (*UserRiskScore, error)
}

// DeviceRepository tracks device fingerprints
type DeviceRepository interface {
	// CountUsersForFingerprint counts distinct users seen with a fingerprint
	CountUsersForFingerprint(ctx context.Context, fingerprintHash string) (int64, error)

	// HasFingerprint reports whether the user was ever recorded with a fingerprint
	HasFingerprint(ctx context.Context, userID uuid.UUID, fingerprintHash string) (bool, error)

	// LatestForUser returns the user's most recently seen device, or nil
	LatestForUser(ctx context.Context, userID uuid.UUID) (*DeviceFingerprint, error)

	// Upsert records a sighting of the (user, fingerprint) pair
	Upsert(ctx context.Context, device *DeviceFingerprint) error
}

// IPIntelligenceRepository stores IP reputation verdicts
type IPIntelligenceRepository interface {
	// Get returns the cached verdict for an IP, or nil when absent
	Get(ctx context.Context, ip string) (*IPIntelligence, error)

	// Upsert stores a verdict
	Upsert(ctx context.Context, intel *IPIntelligence) error
}

// CheckRecord is everything a completed check commits at once
type CheckRecord struct {
	Log            *FraudCheckLog
	Alert          *FraudAlert
	Profile        *UserRiskScore
	TriggeredRules []uuid.UUID
	At             time.Time
}

// CheckRepository persists check outcomes and serves the audit log
type CheckRepository interface {
	// RecordCheck commits the log, optional alert, profile update and rule
	// counters in one transaction. A nil Profile leaves the profile untouched.
	RecordCheck(ctx context.Context, record *CheckRecord) error

	// ListLogs returns matching check logs newest first, with the total match count
	ListLogs(ctx context.Context, filter CheckLogFilter) ([]*FraudCheckLog, int64, error)
}

// StatisticsRepository aggregates alert and profile data for dashboards
type StatisticsRepository interface {
	CountAlertsSince(ctx context.Context, since time.Time) (int64, error)
	CountPendingHighRiskOrders(ctx context.Context) (int64, error)
	CountBlockedUsers(ctx context.Context) (int64, error)
	// ReviewCounts returns the number of dismissed and confirmed alerts
	ReviewCounts(ctx context.Context) (dismissed, confirmed int64, err error)
	AlertsBySeverity(ctx context.Context) (map[Severity]int64, error)
	AlertsByType(ctx context.Context) (map[FlagCategory]int64, error)
	AlertTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
	RuleEffectiveness(ctx context.Context) ([]RuleEffectiveness, error)
}

// RuleCache is invalidated whenever a rule changes
type RuleCache interface {
	Invalidate()
}

// EventPublisher emits alert lifecycle events
type EventPublisher interface {
	PublishAlertCreated(ctx context.Context, alert *FraudAlert) error
	PublishAlertReviewed(ctx context.Context, event *AlertReviewedEvent) error
}
