// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package validation wraps a shared go-playground/validator instance with
// the custom rules this service needs: Slack member ids and calendar dates.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	// Slack member ids as accepted by the Hackatime API.
	slackIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// Error collects every failed rule of one validation call.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the process-wide validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		mustRegister("slackid", func(fl validator.FieldLevel) bool {
			return slackIDPattern.MatchString(fl.Field().String())
		})
		mustRegister("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse("2006-01-02", fl.Field().String())
			return err == nil
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// ValidateStruct validates s and returns nil or an *Error.
func ValidateStruct(s any) error {
	return convert(GetValidator().Struct(s))
}

// ValidateVar validates a single value against a tag list.
func ValidateVar(field string, v any, tag string) error {
	err := convert(GetValidator().Var(v, tag))
	var verr *Error
	if errors.As(err, &verr) {
		for i := range verr.Fields {
			verr.Fields[i].Field = field
			verr.Fields[i].Message = strings.Replace(verr.Fields[i].Message, "value", field, 1)
		}
	}
	return err
}

// ValidSlackID reports whether id looks like a Slack member id.
func ValidSlackID(id string) bool {
	return slackIDPattern.MatchString(id)
}

func convert(err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}
	out := &Error{Fields: make([]FieldError, len(ves))}
	for i, fe := range ves {
		name := fe.Namespace()
		if name == "" {
			name = "value"
		}
		out.Fields[i] = FieldError{
			Field:   name,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe, name),
		}
	}
	return out
}

func translate(fe validator.FieldError, name string) string {
	switch fe.Tag() {
	case "required", "required_if":
		return name + " is required"
	case "slackid":
		return name + " must be a Slack member id (letters, digits, '-' or '_', at most 50)"
	case "isodate":
		return name + " must be a date in YYYY-MM-DD format"
	case "url":
		return name + " must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
