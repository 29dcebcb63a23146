package fraud

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator, reporting json field names
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs tag validation and converts the first failure to a ValidationError
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.TrimPrefix(fe.Namespace(), rootNamespace(fe.Namespace()))
		return NewValidationError(field, fmt.Sprintf("failed %q validation", fe.Tag()))
	}
	return NewValidationError("", err.Error())
}

func rootNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[:i+1]
	}
	return ""
}

// Validate checks a fraud check input before anything is read or written
func (in *FraudCheckInput) Validate() error {
	if in == nil {
		return NewValidationError("", "input is required")
	}
	if in.UserID == uuid.Nil {
		return NewValidationError("user_id", "is required")
	}
	if !in.CheckType.Valid() {
		return NewValidationError("check_type", ErrInvalidCheckType.Error())
	}
	if err := ValidateStruct(in); err != nil {
		return err
	}
	if in.OrderDetails != nil && in.OrderDetails.TotalAmount.IsNegative() {
		return NewValidationError("order_details.total_amount", "cannot be negative")
	}
	if in.Payment != nil && in.Payment.Amount.IsNegative() {
		return NewValidationError("payment.amount", "cannot be negative")
	}
	return nil
}

// Validate checks a review request
func (r ReviewInput) Validate() error {
	if _, err := r.Decision.Status(); err != nil {
		return NewValidationError("decision", err.Error())
	}
	return nil
}
