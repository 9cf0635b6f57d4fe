package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithActor creates a new logger entry with the acting user's name
func (l *Logger) WithActor(actor string) *logrus.Entry {
	return l.Logger.WithField("actor", actor)
}

// WithService creates a new logger entry with service name field
func (l *Logger) WithService(service string) *logrus.Entry {
	return l.Logger.WithField("service", service)
}

// Audit logs access decisions with structured format
func (l *Logger) Audit(actor, action, patientID, status string, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":      true,
		"actor":      actor,
		"action":     action,
		"patient_id": patientID,
		"status":     status,
		"details":    details,
	})

	if status == "Denied" {
		entry.Warn("Access decision")
	} else {
		entry.Info("Access decision")
	}
}

// Security logs security-related events
func (l *Logger) Security(event string, actor string, details map[string]interface{}) {
	l.Logger.WithFields(logrus.Fields{
		"security": true,
		"event":    event,
		"actor":    actor,
		"details":  details,
	}).Warn("Security event")
}

// TrustUpdate logs a trust score recomputation result
func (l *Logger) TrustUpdate(actor string, oldScore, newScore int) {
	l.Logger.WithFields(logrus.Fields{
		"trust":     true,
		"actor":     actor,
		"old_score": oldScore,
		"new_score": newScore,
	}).Info("Trust score recomputed")
}

// HTTPRequest logs HTTP request events
func (l *Logger) HTTPRequest(method, path, clientIP string, statusCode int, durationMs int64) {
	entry := l.Logger.WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  durationMs,
	})

	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}
