package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/domain/activity"
	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/rules"
	"fraud-risk-engine/internal/pkg/metrics"
	"fraud-risk-engine/internal/pkg/tracing"
)

// maxRecordAttempts bounds how often a check is rescored after its profile
// changed underneath it
const maxRecordAttempts = 3

// UserLocker serializes checks for the same user
type UserLocker interface {
	Lock(ctx context.Context, userID uuid.UUID) (func(), error)
}

// RuleSource supplies the active rule set
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]*fraud.FraudRule, error)
}

// FlagEngine runs the analyzers for one evaluation
type FlagEngine interface {
	Run(ctx context.Context, ev *rules.Evaluation) ([]fraud.FraudFlag, error)
}

// CheckFraudDeps groups the collaborators of CheckFraudUseCase
type CheckFraudDeps struct {
	Rules    RuleSource
	Engine   FlagEngine
	Users    activity.Reader
	Profiles fraud.RiskProfileRepository
	Checks   fraud.CheckRepository
	Locker   UserLocker
	Events   fraud.EventPublisher
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Tracer   trace.Tracer
}

// CheckFraudUseCase scores a user action and records the outcome
type CheckFraudUseCase struct {
	rules    RuleSource
	engine   FlagEngine
	users    activity.Reader
	profiles fraud.RiskProfileRepository
	checks   fraud.CheckRepository
	locker   UserLocker
	events   fraud.EventPublisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCheckFraudUseCase creates a new check use case
func NewCheckFraudUseCase(deps CheckFraudDeps) *CheckFraudUseCase {
	uc := &CheckFraudUseCase{
		rules:    deps.Rules,
		engine:   deps.Engine,
		users:    deps.Users,
		profiles: deps.Profiles,
		checks:   deps.Checks,
		locker:   deps.Locker,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if uc.events == nil {
		uc.events = fraud.NopPublisher{}
	}
	if uc.logger == nil {
		uc.logger = zap.NewNop()
	}
	if uc.tracer == nil {
		uc.tracer = tracing.Tracer()
	}
	return uc
}

// Execute scores the input. Only validation failures are returned as
// errors; any other failure yields the safe default review result.
func (uc *CheckFraudUseCase) Execute(ctx context.Context, input *fraud.FraudCheckInput) (*fraud.FraudCheckResult, error) {
	start := time.Now()

	ctx, span := uc.tracer.Start(ctx, "fraud.check")
	defer span.End()

	if err := input.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	checkID := uuid.New()
	span.SetAttributes(
		attribute.String("fraud.check_id", checkID.String()),
		attribute.String("fraud.check_type", string(input.CheckType)),
	)

	user, err := uc.users.GetUser(ctx, input.UserID)
	if errors.Is(err, activity.ErrUserNotFound) {
		return nil, fraud.NewValidationError("user_id", "unknown user")
	}
	if err != nil {
		return uc.degrade(ctx, checkID, input, start, fmt.Errorf("failed to load user: %w", err)), nil
	}

	unlock, err := uc.locker.Lock(ctx, input.UserID)
	if err != nil {
		return uc.degrade(ctx, checkID, input, start, fmt.Errorf("failed to acquire user lock: %w", err)), nil
	}
	defer unlock()

	result, err := uc.evaluate(ctx, checkID, input, user, start)
	if err != nil {
		return uc.degrade(ctx, checkID, input, start, err), nil
	}
	return result, nil
}

func (uc *CheckFraudUseCase) evaluate(ctx context.Context, checkID uuid.UUID, input *fraud.FraudCheckInput, user *activity.UserSnapshot, start time.Time) (*fraud.FraudCheckResult, error) {
	now := uc.now()

	active, err := uc.rules.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}

	profile, err := uc.profiles.GetOrCreate(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk profile: %w", err)
	}

	flags, err := uc.engine.Run(ctx, &rules.Evaluation{
		Input: input,
		User:  user,
		Rules: rules.ApplicableRules(active, input, user),
		Now:   now,
	})
	if err != nil {
		return nil, err
	}
	if flags == nil {
		flags = []fraud.FraudFlag{}
	}

	var (
		result *fraud.FraudCheckResult
		alert  *fraud.FraudAlert
	)
	for attempt := 1; ; attempt++ {
		result, alert = scoreCheck(checkID, input, profile, flags, start, now)
		profile.ApplyCheck(result, now)

		err = uc.checks.RecordCheck(ctx, &fraud.CheckRecord{
			Log:            fraud.NewCheckLog(input, result, now),
			Alert:          alert,
			Profile:        profile,
			TriggeredRules: result.TriggeredRules,
			At:             now,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, fraud.ErrConcurrentUpdate) || attempt == maxRecordAttempts {
			return nil, fmt.Errorf("failed to record check: %w", err)
		}

		// an admin action moved the profile; rescore the same flags on it
		uc.logger.Warn("risk profile changed during check, retrying",
			zap.String("check_id", checkID.String()),
			zap.String("user_id", input.UserID.String()),
			zap.Int("attempt", attempt))
		profile, err = uc.profiles.GetOrCreate(ctx, input.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload risk profile: %w", err)
		}
	}

	if alert != nil {
		uc.publishAlert(ctx, alert)
	}
	uc.metrics.ObserveCheck(string(result.Recommendation), time.Since(start))

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("fraud.risk_score", result.RiskScore),
		attribute.String("fraud.recommendation", string(result.Recommendation)),
	)
	uc.logger.Info("fraud check completed",
		zap.String("check_id", checkID.String()),
		zap.String("user_id", input.UserID.String()),
		zap.String("check_type", string(input.CheckType)),
		zap.Int("risk_score", result.RiskScore),
		zap.String("recommendation", string(result.Recommendation)),
		zap.Strings("flags", result.FlagNames()))

	return result, nil
}

// scoreCheck folds the flags onto the profile baseline and builds the alert
// a non-allow recommendation needs
func scoreCheck(checkID uuid.UUID, input *fraud.FraudCheckInput, profile *fraud.UserRiskScore, flags []fraud.FraudFlag, start, now time.Time) (*fraud.FraudCheckResult, *fraud.FraudAlert) {
	score := fraud.AggregateScore(profile.RiskScore, flags)
	result := &fraud.FraudCheckResult{
		CheckID:        checkID,
		RiskScore:      score,
		RiskLevel:      fraud.ClassifyRiskLevel(score),
		Recommendation: fraud.Recommend(score),
		Flags:          flags,
		TriggeredRules: fraud.TriggeredRuleIDs(flags),
	}
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	var alert *fraud.FraudAlert
	if result.Recommendation != fraud.RecommendAllow {
		alert = fraud.NewAlertFromResult(input, result, now)
		result.AlertID = &alert.ID
	}
	return result, alert
}

// degrade answers with the safe default and records the attempt on a
// best-effort basis. The risk profile is left untouched.
func (uc *CheckFraudUseCase) degrade(ctx context.Context, checkID uuid.UUID, input *fraud.FraudCheckInput, start time.Time, cause error) *fraud.FraudCheckResult {
	uc.logger.Error("fraud check degraded to safe default",
		zap.String("check_id", checkID.String()),
		zap.String("user_id", input.UserID.String()),
		zap.Error(cause))

	span := trace.SpanFromContext(ctx)
	span.RecordError(cause)
	span.SetStatus(codes.Error, "degraded to safe default")

	now := uc.now()
	result := fraud.SafeDefaultResult(checkID, time.Since(start).Milliseconds())
	alert := fraud.NewAlertFromResult(input, result, now)
	result.AlertID = &alert.ID

	// the audit record outlives a cancelled caller
	recordCtx := context.WithoutCancel(ctx)
	err := uc.checks.RecordCheck(recordCtx, &fraud.CheckRecord{
		Log:   fraud.NewCheckLog(input, result, now),
		Alert: alert,
		At:    now,
	})
	if err != nil {
		uc.logger.Error("failed to record degraded check",
			zap.String("check_id", checkID.String()),
			zap.Error(err))
		result.AlertID = nil
	} else {
		uc.publishAlert(recordCtx, alert)
	}

	uc.metrics.DegradedCheck()
	uc.metrics.ObserveCheck(string(result.Recommendation), time.Since(start))
	return result
}

func (uc *CheckFraudUseCase) publishAlert(ctx context.Context, alert *fraud.FraudAlert) {
	uc.metrics.AlertCreated(string(alert.AlertType))
	if err := uc.events.PublishAlertCreated(ctx, alert); err != nil {
		uc.logger.Warn("failed to publish alert event",
			zap.String("alert_id", alert.ID.String()),
			zap.Error(err))
	}
}
