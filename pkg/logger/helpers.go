package logger

import (
	"context"

	"github.com/rs/zerolog"

	"shopfiles/pkg/models"
)

// LogOutcome logs the final result of one asset download
func LogOutcome(log Logger, outcome models.DownloadOutcome) {
	fields := map[string]interface{}{
		"url":      outcome.URL,
		"path":     outcome.Path,
		"attempts": outcome.Attempts,
		"duration": outcome.Duration,
	}
	if outcome.Success {
		fields["bytes"] = outcome.Bytes
		log.InfoWithFields("Downloaded", fields)
		return
	}
	fields["reason"] = outcome.Reason
	fields["error_type"] = string(outcome.ErrorType)
	log.ErrorWithFields("Download failed", fields)
}

// LogPageSummary logs the per-page totals
func LogPageSummary(log Logger, summary models.PageSummary) {
	log.InfoWithFields("Page processed", map[string]interface{}{
		"page":       summary.Number,
		"items":      summary.Items,
		"skipped":    len(summary.Skipped),
		"downloaded": summary.Downloaded(),
		"failed":     summary.Failed(),
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
