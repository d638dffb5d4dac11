package slogger

var _ Logger = (*DevNullLogger)(nil)

// DevNullLogger discards everything. It is the default so that library
// consumers opt in to output explicitly.
type DevNullLogger struct{}

// NewDevNullLogger returns a logger that drops all messages
func NewDevNullLogger() *DevNullLogger {
	return &DevNullLogger{}
}

func (l *DevNullLogger) Debug(msg string, keysAndValues ...any) {}

func (l *DevNullLogger) Info(msg string, keysAndValues ...any) {}

func (l *DevNullLogger) Warn(msg string, keysAndValues ...any) {}

func (l *DevNullLogger) Error(msg string, keysAndValues ...any) {}

func (l *DevNullLogger) With(keysAndValues ...any) Logger { return l }
