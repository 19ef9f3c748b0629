package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldSource is the structured log field key for the configured source name.
	FieldSource = "source"
	// FieldBackend is the structured log field key for the rate-limited backend.
	FieldBackend = "backend"
	// FieldRunID is the structured log field key for the pipeline run identifier.
	FieldRunID = "run_id"
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

// SourceFields returns the fields that identify a source and its backend.
// The backend is omitted when it equals the source name.
func SourceFields(source, backend string) []zap.Field {
	if strings.TrimSpace(backend) == strings.TrimSpace(source) {
		backend = ""
	}
	return StringFields(
		StringField{Key: FieldSource, Value: source},
		StringField{Key: FieldBackend, Value: backend},
	)
}

// WithSourceFields attaches the source fields to the provided logger.
func WithSourceFields(logger *zap.Logger, source, backend string) *zap.Logger {
	return WithFields(logger, SourceFields(source, backend)...)
}

// WithRunID attaches the run identifier to the provided logger.
func WithRunID(logger *zap.Logger, runID string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldRunID, Value: runID})...)
}
