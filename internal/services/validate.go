package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/smartkids/tutoring-api/types"
)

var (
	clockPattern    = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names so messages match the request payloads.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return types.WeekdayIndex(fl.Field().String()) >= 0
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateInput checks in against its struct tags and returns a validation
// error describing the first failing field.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return wrapError(KindValidation, "invalid request", err)
	}
	return wrapError(KindValidation, fieldMessage(fieldErrs[0]), err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "clock":
		return fmt.Sprintf("%s must be a time formatted as HH:MM", field)
	case "weekday":
		return fmt.Sprintf("%s must be a weekday name", field)
	case "timezone":
		return fmt.Sprintf("%s must be an IANA time zone", field)
	case "username":
		return fmt.Sprintf("%s must be 3-32 letters, digits, '.', '_' or '-'", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

// normalizeDays trims and title-cases day names, drops duplicates and
// returns them Monday first. Unknown names are kept at the end so that
// validation can report them.
func normalizeDays(days []string) []string {
	seen := make(map[string]struct{}, len(days))
	normalized := make([]string, 0, len(days))
	for _, day := range days {
		day = strings.TrimSpace(day)
		if day == "" {
			continue
		}
		day = strings.ToUpper(day[:1]) + strings.ToLower(day[1:])
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		normalized = append(normalized, day)
	}

	slices.SortStableFunc(normalized, func(a, b string) int {
		return dayRank(a) - dayRank(b)
	})
	return normalized
}

func dayRank(day string) int {
	if idx := types.WeekdayIndex(day); idx >= 0 {
		return idx
	}
	return len(types.Weekdays)
}
