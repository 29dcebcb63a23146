package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fraud-risk-engine/internal/domain/fraud"
)

// RuleRepository implements fraud.RuleRepository
type RuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(client *Client) *RuleRepository {
	return &RuleRepository{db: client.DB()}
}

// List returns rules ordered by name
func (r *RuleRepository) List(ctx context.Context, filter fraud.RuleFilter) ([]*fraud.FraudRule, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var models []RuleModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return modelsToRules(models)
}

// ListActive returns every active rule
func (r *RuleRepository) ListActive(ctx context.Context) ([]*fraud.FraudRule, error) {
	active := true
	return r.List(ctx, fraud.RuleFilter{IsActive: &active})
}

// GetByID retrieves a rule by ID
func (r *RuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*fraud.FraudRule, error) {
	var model RuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fraud.ErrRuleNotFound
		}
		return nil, err
	}
	return modelToRule(&model)
}

// Save inserts the rule or replaces its definition. Feedback counters are
// never overwritten by an admin save.
func (r *RuleRepository) Save(ctx context.Context, rule *fraud.FraudRule) error {
	model, err := ruleToModel(rule)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "rule_type", "conditions", "action", "severity",
			"score_impact", "is_active", "applicable_order_types", "applicable_user_roles",
			"updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fraud.ErrRuleAlreadyExists
		}
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// Toggle flips is_active and returns the updated rule
func (r *RuleRepository) Toggle(ctx context.Context, id uuid.UUID) (*fraud.FraudRule, error) {
	var model RuleModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&RuleModel{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_active":  gorm.Expr("NOT is_active"),
				"updated_at": tx.NowFunc(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fraud.ErrRuleNotFound
		}
		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return modelToRule(&model)
}

// Delete removes a rule
func (r *RuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&RuleModel{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fraud.ErrRuleNotFound
	}
	return nil
}

func ruleToModel(rule *fraud.FraudRule) (*RuleModel, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	orderTypes, err := encodeStrings(rule.ApplicableOrderTypes)
	if err != nil {
		return nil, err
	}
	roles, err := encodeStrings(rule.ApplicableUserRoles)
	if err != nil {
		return nil, err
	}

	return &RuleModel{
		ID:                   rule.ID,
		Name:                 rule.Name,
		Description:          rule.Description,
		RuleType:             string(rule.Type),
		Conditions:           string(conditions),
		Action:               string(rule.Action),
		Severity:             string(rule.Severity),
		ScoreImpact:          rule.ScoreImpact,
		IsActive:             rule.IsActive,
		ApplicableOrderTypes: orderTypes,
		ApplicableUserRoles:  roles,
		TriggerCount:         rule.TriggerCount,
		FalsePositiveCount:   rule.FalsePositiveCount,
		LastTriggeredAt:      rule.LastTriggeredAt,
		CreatedBy:            rule.CreatedBy,
		CreatedAt:            rule.CreatedAt,
		UpdatedAt:            rule.UpdatedAt,
	}, nil
}

func modelToRule(m *RuleModel) (*fraud.FraudRule, error) {
	ruleType := fraud.RuleType(m.RuleType)
	conditions, err := fraud.DecodeConditions(ruleType, []byte(m.Conditions))
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", m.ID, err)
	}

	rule := &fraud.FraudRule{
		ID:                 m.ID,
		Name:               m.Name,
		Description:        m.Description,
		Type:               ruleType,
		Conditions:         conditions,
		Action:             fraud.RuleAction(m.Action),
		Severity:           fraud.Severity(m.Severity),
		ScoreImpact:        m.ScoreImpact,
		IsActive:           m.IsActive,
		TriggerCount:       m.TriggerCount,
		FalsePositiveCount: m.FalsePositiveCount,
		LastTriggeredAt:    m.LastTriggeredAt,
		CreatedBy:          m.CreatedBy,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if rule.ApplicableOrderTypes, err = decodeStrings(m.ApplicableOrderTypes); err != nil {
		return nil, err
	}
	if rule.ApplicableUserRoles, err = decodeStrings(m.ApplicableUserRoles); err != nil {
		return nil, err
	}
	return rule, nil
}

func modelsToRules(models []RuleModel) ([]*fraud.FraudRule, error) {
	rules := make([]*fraud.FraudRule, 0, len(models))
	for i := range models {
		rule, err := modelToRule(&models[i])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode string list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// isUniqueViolation matches PostgreSQL and SQLite unique constraint errors
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
