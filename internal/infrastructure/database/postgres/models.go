package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleModel is the database model for fraud rules
type RuleModel struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name                 string     `gorm:"type:varchar(100);uniqueIndex;not null"`
	Description          string     `gorm:"type:text"`
	RuleType             string     `gorm:"type:varchar(20);index;not null"`
	Conditions           string     `gorm:"type:jsonb;not null"`
	Action               string     `gorm:"type:varchar(20);not null"`
	Severity             string     `gorm:"type:varchar(20);not null"`
	ScoreImpact          int        `gorm:"not null"`
	IsActive             bool       `gorm:"index;not null"`
	ApplicableOrderTypes string     `gorm:"type:jsonb"`
	ApplicableUserRoles  string     `gorm:"type:jsonb"`
	TriggerCount         int64      `gorm:"not null;default:0"`
	FalsePositiveCount   int64      `gorm:"not null;default:0"`
	LastTriggeredAt      *time.Time
	CreatedBy            *uuid.UUID `gorm:"type:uuid"`
	CreatedAt            time.Time  `gorm:"not null"`
	UpdatedAt            time.Time  `gorm:"not null"`
}

// TableName returns the table name for fraud rules
func (RuleModel) TableName() string {
	return "fraud_rules"
}

// AlertModel is the database model for fraud alerts
type AlertModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CheckID         uuid.UUID  `gorm:"type:uuid;index;not null"`
	UserID          uuid.UUID  `gorm:"type:uuid;index;not null"`
	OrderID         *uuid.UUID `gorm:"type:uuid;index"`
	RuleID          *uuid.UUID `gorm:"type:uuid;index"`
	AlertType       string     `gorm:"type:varchar(20);index;not null"`
	Severity        string     `gorm:"type:varchar(20);index;not null"`
	Details         string     `gorm:"type:jsonb;not null"`
	RiskScore       int        `gorm:"not null"`
	Status          string     `gorm:"type:varchar(20);index;not null"`
	ReviewedBy      *uuid.UUID `gorm:"type:uuid"`
	ReviewedAt      *time.Time
	ResolutionNotes string    `gorm:"type:text"`
	UserBlocked     bool      `gorm:"not null;default:false"`
	OrderCancelled  bool      `gorm:"not null;default:false"`
	RefundIssued    bool      `gorm:"not null;default:false"`
	IPAddress       string    `gorm:"type:varchar(45)"`
	UserAgent       string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index;not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for fraud alerts
func (AlertModel) TableName() string {
	return "fraud_alerts"
}

// RiskProfileModel is the database model for per-user risk scores
type RiskProfileModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID              uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	RiskScore           int       `gorm:"not null;default:0"`
	RiskLevel           string    `gorm:"type:varchar(20);not null"`
	Factors             string    `gorm:"type:jsonb"`
	FlagCount           int       `gorm:"not null;default:0"`
	ConfirmedFraudCount int       `gorm:"not null;default:0"`
	DismissedAlertCount int       `gorm:"not null;default:0"`
	IsBlocked           bool      `gorm:"index;not null;default:false"`
	BlockedAt           *time.Time
	BlockedBy           *uuid.UUID `gorm:"type:uuid"`
	BlockedReason       string     `gorm:"type:text"`
	UnblockAt           *time.Time
	LastCalculated      time.Time `gorm:"not null"`
	Version             int64     `gorm:"not null;default:0"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for user risk scores
func (RiskProfileModel) TableName() string {
	return "user_risk_scores"
}

// DeviceFingerprintModel is the database model for device sightings
type DeviceFingerprintModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_device_user_fingerprint"`
	FingerprintHash string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_device_user_fingerprint;index"`
	DeviceInfo      string    `gorm:"type:jsonb"`
	IPAddress       string    `gorm:"type:varchar(45)"`
	UserAgent       string    `gorm:"type:text"`
	FirstSeen       time.Time `gorm:"not null"`
	LastSeen        time.Time `gorm:"index;not null"`
	SessionCount    int       `gorm:"not null;default:1"`
}

// TableName returns the table name for device fingerprints
func (DeviceFingerprintModel) TableName() string {
	return "fraud_device_fingerprints"
}

// CheckLogModel is the database model for the append-only check log
type CheckLogModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"type:uuid;index;not null"`
	OrderID          *uuid.UUID `gorm:"type:uuid"`
	CheckType        string     `gorm:"type:varchar(30);not null"`
	Input            string     `gorm:"type:jsonb"`
	RiskScore        int        `gorm:"not null"`
	RiskLevel        string     `gorm:"type:varchar(20);not null"`
	Decision         string     `gorm:"type:varchar(20);index;not null"`
	TriggeredRules   string     `gorm:"type:jsonb"`
	Flags            string     `gorm:"type:jsonb"`
	ProcessingTimeMs int64      `gorm:"not null"`
	IPAddress        string     `gorm:"type:varchar(45)"`
	UserAgent        string     `gorm:"type:text"`
	Fingerprint      string     `gorm:"type:varchar(255)"`
	Degraded         bool       `gorm:"not null;default:false"`
	CreatedAt        time.Time  `gorm:"index;not null"`
}

// TableName returns the table name for check logs
func (CheckLogModel) TableName() string {
	return "fraud_check_logs"
}

// IPIntelligenceModel is the database model for cached IP verdicts
type IPIntelligenceModel struct {
	IPAddress string    `gorm:"column:ip_address;type:varchar(45);primaryKey"`
	IsVPN     bool      `gorm:"column:is_vpn;not null;default:false"`
	IsProxy   bool      `gorm:"column:is_proxy;not null;default:false"`
	Country   string    `gorm:"type:varchar(2)"`
	ExpiresAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for IP intelligence
func (IPIntelligenceModel) TableName() string {
	return "fraud_ip_intelligence"
}

// UserModel maps the columns of the externally owned users table the
// engine reads
type UserModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role      string    `gorm:"type:varchar(30);not null"`
	Status    string    `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for users
func (UserModel) TableName() string {
	return "users"
}

// OrderModel maps the externally owned orders table
type OrderModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	Status      string          `gorm:"type:varchar(20);not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CreatedAt   time.Time       `gorm:"index;not null"`
}

// TableName returns the table name for orders
func (OrderModel) TableName() string {
	return "orders"
}

// PaymentModel maps the externally owned payments table
type PaymentModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	OrderID   *uuid.UUID      `gorm:"type:uuid"`
	Status    string          `gorm:"type:varchar(20);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CreatedAt time.Time       `gorm:"index;not null"`
}

// TableName returns the table name for payments
func (PaymentModel) TableName() string {
	return "payments"
}

// fraudModels are the tables this service owns and migrates
func fraudModels() []interface{} {
	return []interface{}{
		&RuleModel{},
		&AlertModel{},
		&RiskProfileModel{},
		&DeviceFingerprintModel{},
		&CheckLogModel{},
		&IPIntelligenceModel{},
	}
}

// activityModels are the external tables, migrated only in tests and
// local development
func activityModels() []interface{} {
	return []interface{}{
		&UserModel{},
		&OrderModel{},
		&PaymentModel{},
	}
}
