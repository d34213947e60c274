package primary

// Logger is the logging port used across services and transports. The zap
// adapter in internal/adapter/logging is the only implementation.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}
