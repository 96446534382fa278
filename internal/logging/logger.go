// Package logging provides structured logging with trace ID propagation.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys owned by this package.
type ContextKey string

const (
	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey ContextKey = "trace_id"
	// SessionIDKey is the context key for the session a request concerns.
	SessionIDKey ContextKey = "session_id"
)

// Logger wraps logrus.Logger with service-scoped fields.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for the given service name, level, and format
// ("json" or "text").
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a Logger from LOG_LEVEL/LOG_FORMAT, defaulting to
// info/json when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns an entry carrying trace ID and session ID from ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if sessionID := GetSessionID(ctx); sessionID != "" {
		entry = entry.WithField("session_id", sessionID)
	}
	return entry
}

// WithFields returns an entry with custom fields plus the service field.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError returns an entry carrying the error and service field.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"service": l.service, "error": err.Error()})
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores a trace ID on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context, if any.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSessionID stores a session ID on the context for log correlation.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID retrieves the session ID from the context, if any.
func GetSessionID(ctx context.Context) string {
	if v, ok := ctx.Value(SessionIDKey).(string); ok {
		return v
	}
	return ""
}

// LogRequest logs a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("http request")
}

// LogTransition logs an accepted session state transition.
func (l *Logger) LogTransition(ctx context.Context, sessionID, operation string, fromVersion, toVersion int64) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"session_id":   sessionID,
		"operation":    operation,
		"from_version": fromVersion,
		"to_version":   toVersion,
	}).Info("session transition")
}

// LogSecurityEvent logs a security/abuse-relevant event (rate limiting etc).
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType string, details map[string]interface{}) {
	fields := logrus.Fields{"event_type": eventType, "severity": "security"}
	for k, v := range details {
		fields[k] = v
	}
	l.WithContext(ctx).WithFields(fields).Warn("security event")
}

// LogPersistentFailure logs an audit job that exhausted its retry budget.
func (l *Logger) LogPersistentFailure(ctx context.Context, sessionID string, version int64, err error, payload map[string]interface{}) {
	fields := logrus.Fields{
		"session_id": sessionID,
		"version":    version,
		"payload":    payload,
	}
	l.WithContext(ctx).WithFields(fields).WithError(err).Error("audit job exhausted retries")
}
