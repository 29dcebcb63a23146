package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/domain/activity"
)

// Service handles rule administration, alert review, user blocking and
// reporting. Scoring itself lives in the check use case.
type Service struct {
	ruleRepo    RuleRepository
	alertRepo   AlertRepository
	profileRepo RiskProfileRepository
	checkRepo   CheckRepository
	statsRepo   StatisticsRepository
	accounts    activity.AccountStatusUpdater
	ruleCache   RuleCache
	events      EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// ServiceDeps groups the collaborators of Service
type ServiceDeps struct {
	Rules      RuleRepository
	Alerts     AlertRepository
	Profiles   RiskProfileRepository
	Checks     CheckRepository
	Statistics StatisticsRepository
	Accounts   activity.AccountStatusUpdater
	RuleCache  RuleCache
	Events     EventPublisher
	Logger     *zap.Logger
}

// NewService creates a new fraud administration service
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		ruleRepo:    deps.Rules,
		alertRepo:   deps.Alerts,
		profileRepo: deps.Profiles,
		checkRepo:   deps.Checks,
		statsRepo:   deps.Statistics,
		accounts:    deps.Accounts,
		ruleCache:   deps.RuleCache,
		events:      deps.Events,
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.events == nil {
		s.events = NopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ListRules returns rules, optionally only active or inactive ones
func (s *Service) ListRules(ctx context.Context, isActive *bool) ([]*FraudRule, error) {
	return s.ruleRepo.List(ctx, RuleFilter{IsActive: isActive})
}

// GetRule retrieves a rule by ID
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*FraudRule, error) {
	return s.ruleRepo.GetByID(ctx, id)
}

// SaveRule validates and creates or updates a rule
func (s *Service) SaveRule(ctx context.Context, rule *FraudRule) error {
	if rule.Action == "" {
		rule.Action = ActionFlag
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	now := s.now()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return err
	}
	s.invalidateRules()
	return nil
}

// ToggleRule flips a rule between active and inactive
func (s *Service) ToggleRule(ctx context.Context, id uuid.UUID) (*FraudRule, error) {
	rule, err := s.ruleRepo.Toggle(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateRules()
	return rule, nil
}

// DeleteRule removes a rule
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.ruleRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateRules()
	return nil
}

func (s *Service) invalidateRules() {
	if s.ruleCache != nil {
		s.ruleCache.Invalidate()
	}
}

// ListAlerts returns alerts matching the filter
func (s *Service) ListAlerts(ctx context.Context, filter AlertFilter) ([]*FraudAlert, int64, error) {
	return s.alertRepo.List(ctx, filter)
}

// GetAlert retrieves an alert by ID
func (s *Service) GetAlert(ctx context.Context, id uuid.UUID) (*FraudAlert, error) {
	return s.alertRepo.GetByID(ctx, id)
}

// ReviewAlert resolves a pending alert. Counters and blocking are applied
// atomically with the status change; account suspension and the review
// event follow the commit.
func (s *Service) ReviewAlert(ctx context.Context, id, reviewerID uuid.UUID, input ReviewInput) (*FraudAlert, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if reviewerID == uuid.Nil {
		return nil, NewValidationError("reviewer_id", "is required")
	}

	now := s.now()
	outcome, err := s.alertRepo.Review(ctx, id, reviewerID, input, now)
	if err != nil {
		return nil, err
	}
	alert := outcome.Alert

	if outcome.UserBlocked {
		if err := s.setAccountStatus(ctx, alert.UserID, activity.AccountSuspended); err != nil {
			s.logger.Error("failed to suspend account after review",
				zap.String("alert_id", alert.ID.String()),
				zap.String("user_id", alert.UserID.String()),
				zap.Error(err))
		}
	}

	event := &AlertReviewedEvent{
		AlertID:     alert.ID,
		UserID:      alert.UserID,
		OrderID:     alert.OrderID,
		Status:      alert.Status,
		ReviewedBy:  reviewerID,
		UserBlocked: alert.UserBlocked,
		CancelOrder: alert.OrderCancelled,
		IssueRefund: alert.RefundIssued,
		Notes:       alert.ResolutionNotes,
		ReviewedAt:  now,
	}
	if err := s.events.PublishAlertReviewed(ctx, event); err != nil {
		s.logger.Warn("failed to publish alert review event",
			zap.String("alert_id", alert.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("alert reviewed",
		zap.String("alert_id", alert.ID.String()),
		zap.String("status", string(alert.Status)),
		zap.String("reviewer_id", reviewerID.String()),
		zap.Bool("user_blocked", alert.UserBlocked))

	return alert, nil
}

// GetUserRiskProfile retrieves a user's risk profile
func (s *Service) GetUserRiskProfile(ctx context.Context, userID uuid.UUID) (*UserRiskScore, error) {
	return s.profileRepo.GetByUserID(ctx, userID)
}

// BlockUser blocks a user and suspends the account. Re-blocking updates
// the audit metadata.
func (s *Service) BlockUser(ctx context.Context, userID, blockedBy uuid.UUID, reason string, unblockAt *time.Time) (*UserRiskScore, error) {
	if userID == uuid.Nil {
		return nil, NewValidationError("user_id", "is required")
	}
	if blockedBy == uuid.Nil {
		return nil, NewValidationError("blocked_by", "is required")
	}

	profile, err := s.profileRepo.Block(ctx, userID, blockedBy, reason, unblockAt, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to block user: %w", err)
	}
	if err := s.setAccountStatus(ctx, userID, activity.AccountSuspended); err != nil {
		return profile, fmt.Errorf("user blocked but account not suspended: %w", err)
	}

	s.logger.Info("user blocked",
		zap.String("user_id", userID.String()),
		zap.String("blocked_by", blockedBy.String()))
	return profile, nil
}

// UnblockUser clears the block and restores the account
func (s *Service) UnblockUser(ctx context.Context, userID uuid.UUID) (*UserRiskScore, error) {
	profile, err := s.profileRepo.Unblock(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.setAccountStatus(ctx, userID, activity.AccountActive); err != nil {
		return profile, fmt.Errorf("user unblocked but account not restored: %w", err)
	}

	s.logger.Info("user unblocked", zap.String("user_id", userID.String()))
	return profile, nil
}

func (s *Service) setAccountStatus(ctx context.Context, userID uuid.UUID, status activity.AccountStatus) error {
	if s.accounts == nil {
		return nil
	}
	err := s.accounts.SetAccountStatus(ctx, userID, status)
	if errors.Is(err, activity.ErrUserNotFound) {
		s.logger.Warn("no account to update", zap.String("user_id", userID.String()))
		return nil
	}
	return err
}

// GetStatistics builds the dashboard summary as of now
func (s *Service) GetStatistics(ctx context.Context, now time.Time) (*Statistics, error) {
	now = now.UTC()
	today := StartOfDay(now)
	stats := &Statistics{GeneratedAt: now}

	var err error
	if stats.AlertsToday, err = s.statsRepo.CountAlertsSince(ctx, today); err != nil {
		return nil, fmt.Errorf("failed to count today's alerts: %w", err)
	}
	if stats.PendingHighRiskOrders, err = s.statsRepo.CountPendingHighRiskOrders(ctx); err != nil {
		return nil, fmt.Errorf("failed to count pending high-risk orders: %w", err)
	}
	if stats.BlockedUsers, err = s.statsRepo.CountBlockedUsers(ctx); err != nil {
		return nil, fmt.Errorf("failed to count blocked users: %w", err)
	}

	dismissed, confirmed, err := s.statsRepo.ReviewCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}
	stats.FalsePositiveRate = FalsePositiveRate(dismissed, confirmed)

	if stats.AlertsBySeverity, err = s.statsRepo.AlertsBySeverity(ctx); err != nil {
		return nil, fmt.Errorf("failed to group alerts by severity: %w", err)
	}
	if stats.AlertsByType, err = s.statsRepo.AlertsByType(ctx); err != nil {
		return nil, fmt.Errorf("failed to group alerts by type: %w", err)
	}

	times, err := s.statsRepo.AlertTimesSince(ctx, today.AddDate(0, 0, -(TrendDays-1)))
	if err != nil {
		return nil, fmt.Errorf("failed to load alert trend: %w", err)
	}
	stats.DailyTrend = BuildDailyTrend(times, now)

	if stats.RuleEffectiveness, err = s.statsRepo.RuleEffectiveness(ctx); err != nil {
		return nil, fmt.Errorf("failed to load rule effectiveness: %w", err)
	}
	return stats, nil
}

// ListCheckLogs reads the check audit log
func (s *Service) ListCheckLogs(ctx context.Context, filter CheckLogFilter) ([]*FraudCheckLog, int64, error) {
	return s.checkRepo.ListLogs(ctx, filter)
}
