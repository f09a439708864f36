package logger

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger is a logger implementation for testing that captures all log messages
type TestLogger struct {
	sink   *testSink
	fields map[string]interface{}
	err    error
}

// testSink is the storage shared by a TestLogger and all its children
type testSink struct {
	mu       sync.Mutex
	messages []LogMessage
	buffer   bytes.Buffer
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &testSink{}}
}

func (l *TestLogger) child(fields map[string]interface{}, err error) *TestLogger {
	return &TestLogger{sink: l.sink, fields: l.merge(fields), err: err}
}

func (l *TestLogger) merge(additional map[string]interface{}) map[string]interface{} {
	if len(l.fields) == 0 && len(additional) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(l.fields)+len(additional))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range additional {
		merged[k] = v
	}
	return merged
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.log("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.log("FATAL", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.child(map[string]interface{}{key: value}, l.err)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.child(fields, l.err)
}

func (l *TestLogger) WithError(err error) Logger {
	return l.child(nil, err)
}

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}

func (l *TestLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := l.merge(fields)
	s.messages = append(s.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  merged,
		Error:   l.err,
	})

	fmt.Fprintf(&s.buffer, "[%s] %s", level, msg)
	if len(merged) > 0 {
		fmt.Fprintf(&s.buffer, " fields=%v", merged)
	}
	if l.err != nil {
		fmt.Fprintf(&s.buffer, " error=%v", l.err)
	}
	fmt.Fprintln(&s.buffer)
}

// GetMessages returns a copy of all captured log messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	messages := make([]LogMessage, len(l.sink.messages))
	copy(messages, l.sink.messages)
	return messages
}

// GetMessagesByLevel returns all messages of a specific level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var filtered []LogMessage
	for _, msg := range l.GetMessages() {
		if msg.Level == level {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// HasMessage checks if a message with the given text was logged
func (l *TestLogger) HasMessage(text string) bool {
	for _, msg := range l.GetMessages() {
		if msg.Message == text {
			return true
		}
	}
	return false
}

// CountMessages counts messages at level whose text contains substr
func (l *TestLogger) CountMessages(level, substr string) int {
	n := 0
	for _, msg := range l.GetMessagesByLevel(level) {
		if strings.Contains(msg.Message, substr) {
			n++
		}
	}
	return n
}

// HasError checks if an error was logged
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("ERROR")) > 0
}

// Clear clears all captured messages
func (l *TestLogger) Clear() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	l.sink.messages = l.sink.messages[:0]
	l.sink.buffer.Reset()
}

// String returns all log messages as a string
func (l *TestLogger) String() string {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	return l.sink.buffer.String()
}
