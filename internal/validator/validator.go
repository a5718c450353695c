// Package validator provides log event validation.
package validator

import (
	"fmt"
	"strings"

	"github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ event.Validator = (*EventValidator)(nil)

// EventValidator checks events before they are admitted to transports.
type EventValidator struct {
	maxMessageBytes int
	maxFields       int
}

// NewEventValidator creates a validator. Zero limits disable the corresponding check.
func NewEventValidator(maxMessageBytes, maxFields int) *EventValidator {
	return &EventValidator{
		maxMessageBytes: maxMessageBytes,
		maxFields:       maxFields,
	}
}

// Validate validates an event.
func (v *EventValidator) Validate(e *event.Event) error {
	if e.ID == "" {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "id",
			Reason:  "required field is missing",
		}
	}

	if strings.TrimSpace(e.Message) == "" && len(e.Fields) == 0 {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "message",
			Reason:  "event has neither message nor fields",
		}
	}

	if !e.Level.Valid() {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "level",
			Reason:  fmt.Sprintf("unsupported level: %d", int8(e.Level)),
		}
	}

	if e.Timestamp.IsZero() {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "timestamp",
			Reason:  "required field is missing",
		}
	}

	if v.maxMessageBytes > 0 && len(e.Message) > v.maxMessageBytes {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "message",
			Reason:  fmt.Sprintf("message is %d bytes (max %d)", len(e.Message), v.maxMessageBytes),
		}
	}

	if v.maxFields > 0 && len(e.Fields) > v.maxFields {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "fields",
			Reason:  fmt.Sprintf("event has %d fields (max %d)", len(e.Fields), v.maxFields),
		}
	}

	for k := range e.Fields {
		if k == "" {
			return &errors.ValidationError{
				EventID: e.ID,
				Field:   "fields",
				Reason:  "empty field key",
			}
		}
	}

	return nil
}
