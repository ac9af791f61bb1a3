// Package validation provides struct validation using go-playground/validator v10.
//
// It exposes a thread-safe singleton validator with the application's custom
// rules registered:
//   - eventcategory: the value must be one of event.Categories (empty is allowed)
//
// Example usage:
//
//	type Patch struct {
//	    ID       string  `validate:"required"`
//	    Category *string `validate:"omitempty,eventcategory"`
//	}
//
//	if err := validation.ValidateStruct(&p); err != nil { ... }
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pfrederiksen/hh-events/internal/event"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
	Value interface{}
}

func (e FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: failed %s=%s (got %v)", e.Field, e.Tag, e.Param, e.Value)
	}
	return fmt.Sprintf("%s: failed %s (got %v)", e.Field, e.Tag, e.Value)
}

// Error collects every failed rule of one struct.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := validate.RegisterValidation("eventcategory", validateCategory); err != nil {
			panic(fmt.Sprintf("registering eventcategory validator: %v", err))
		}
	})
	return validate
}

// ValidateStruct validates s and returns *Error when any rule fails.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Namespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}

func validateCategory(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return s == "" || event.IsCategory(s)
}
