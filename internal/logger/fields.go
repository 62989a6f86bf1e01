package logger

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldUserID is the structured log field key for the chat user identifier.
	FieldUserID = "user_id"
	// FieldUsername is the structured log field key for the chat handle.
	FieldUsername = "username"
	// FieldState is the structured log field key for the conversation state.
	FieldState = "state"
	// FieldEvent is the structured log field key for the inbound event kind.
	FieldEvent = "event"
	// FieldTrigger is the structured log field key for how an event arrived.
	FieldTrigger = "trigger"
	// FieldPurpose is the structured log field key for the tag selection flow.
	FieldPurpose = "purpose"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// EventFields describes who sent an event and what kind of event it was.
// A zero user id is dropped along with empty strings.
func EventFields(userID int64, username, event string) []zap.Field {
	id := ""
	if userID != 0 {
		id = strconv.FormatInt(userID, 10)
	}

	return StringFields(
		StringField{Key: FieldUserID, Value: id},
		StringField{Key: FieldUsername, Value: username},
		StringField{Key: FieldEvent, Value: event},
	)
}

// WithEventFields attaches the event fields to the provided logger.
func WithEventFields(logger *zap.Logger, userID int64, username, event string) *zap.Logger {
	return WithFields(logger, EventFields(userID, username, event)...)
}
