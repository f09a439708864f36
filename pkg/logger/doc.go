// Package logger provides structured logging for shopfiles.
//
// It wraps zerolog behind a small Logger interface so components can be
// handed a logger (or a TestLogger in tests) instead of reaching for a global.
//
//	log := logger.GetLogger().WithField("component", "fetcher")
//	log.WarnWithFields("Retrying download", map[string]interface{}{
//	    "attempt": 1,
//	    "max":     3,
//	    "url":     "https://cdn.example.com/a.png",
//	    "reason":  "HTTP 500",
//	})
//
// With Logging.File set, output is written to both stderr and the file.
package logger
