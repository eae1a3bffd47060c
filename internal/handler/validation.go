package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"meeting-scheduler-api/internal/apperr"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(meetingTimes, MeetingInput{})
	return v
}

// meetingTimes rejects meetings that do not start strictly before they end.
// Unparseable times are left to the field-level datetime rule.
func meetingTimes(sl validator.StructLevel) {
	in := sl.Current().Interface().(MeetingInput)
	start, err1 := time.Parse(time.RFC3339, in.StartTime)
	end, err2 := time.Parse(time.RFC3339, in.EndTime)
	if err1 != nil || err2 != nil {
		return
	}
	if !start.Before(end) {
		sl.ReportError(in.EndTime, "endTime", "EndTime", "after_start", "")
	}
}

// check validates v and converts failures into a BAD_USER_INPUT result.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return internal("validate", err)
	}
	details := make([]apperr.FieldError, 0, len(ve))
	for _, fe := range ve {
		details = append(details, apperr.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return apperr.BadInput("Invalid input", details...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		return fmt.Sprintf("Must contain at least %s character(s)", fe.Param())
	case "max":
		return fmt.Sprintf("Must contain at most %s character(s)", fe.Param())
	case "email":
		return "Invalid email"
	case "url":
		return "Invalid url"
	case "datetime":
		return "Invalid " + fe.Field()
	case "after_start":
		return "startTime must be before endTime"
	}
	return fmt.Sprintf("Failed %s validation", fe.Tag())
}
