package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	errs "shopfiles/pkg/errors"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/metrics"
	"shopfiles/pkg/models"
	"shopfiles/pkg/retry"
	"shopfiles/pkg/storage"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultRetryDelay     = time.Second
	DefaultMaxAttempts    = 3
)

// FetcherOptions configures a Fetcher. A zero RequestTimeout takes the
// default; a zero RetryDelay retries immediately.
type FetcherOptions struct {
	RequestTimeout time.Duration
	RetryDelay     time.Duration
	UserAgent      string
	// HTTPClient overrides the client built from RequestTimeout
	HTTPClient *http.Client
	Failures   storage.FailureRecorder
	Metrics    *metrics.Metrics
	Logger     logger.Logger
}

// Fetcher downloads single assets with bounded retries. It is safe for
// concurrent use as long as callers pass distinct destinations.
type Fetcher struct {
	client     *http.Client
	retryDelay time.Duration
	userAgent  string
	failures   storage.FailureRecorder
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// NewFetcher creates a Fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	delay := opts.RetryDelay
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Fetcher{
		client:     client,
		retryDelay: delay,
		userAgent:  opts.UserAgent,
		failures:   opts.Failures,
		metrics:    opts.Metrics,
		logger:     log.WithField("component", "fetcher"),
	}
}

// Fetch downloads sourceURL to dest, trying at most maxAttempts times with a
// constant delay between attempts. dest's directory must already exist.
//
// Fetch never returns an error: a download that fails every attempt is
// logged, appended to the failure log and reported in the outcome.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, dest string, maxAttempts int) models.DownloadOutcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := time.Now()
	outcome := models.DownloadOutcome{URL: sourceURL, Path: dest}

	err := retry.Do(func() error {
		outcome.Attempts++
		n, err := f.fetchOnce(ctx, sourceURL, dest)
		outcome.Bytes = n
		return err
	}, &retry.Config{
		MaxAttempts: maxAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: f.retryDelay},
		Context:     ctx,
		RetryIf: func(err error) bool {
			return ctx.Err() == nil
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			f.metrics.Retried()
			f.logger.WarnWithFields("Retrying download", map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"url":          sourceURL,
				"reason":       errs.Reason(err),
				"delay":        delay,
			})
		},
	})

	outcome.Duration = time.Since(start)

	if err == nil {
		outcome.Success = true
		f.metrics.Downloaded(true, outcome.Bytes, outcome.Duration)
		logger.LogOutcome(f.logger, outcome)
		return outcome
	}

	classified := errs.Classify(finalError(err))
	outcome.Bytes = 0
	outcome.ErrorType = classified.Type
	outcome.Reason = classified.Reason()

	f.metrics.Downloaded(false, 0, outcome.Duration)
	logger.LogOutcome(f.logger, outcome)

	if f.failures != nil {
		if rerr := f.failures.Record(sourceURL, outcome.Reason); rerr != nil {
			f.logger.WithError(rerr).ErrorWithFields("Failed to record download failure", map[string]interface{}{
				"url": sourceURL,
			})
		}
	}

	return outcome
}

// finalError unwraps the retry wrapper to the error of the last attempt
func finalError(err error) error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Last
	}
	return err
}

// fetchOnce performs a single streamed GET into dest
func (f *Fetcher) fetchOnce(ctx context.Context, sourceURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, errs.New(errs.ErrorTypeClientError, 0, "invalid url: %v", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, errs.Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, errs.FromStatus(resp.StatusCode)
	}

	body := &bodyReader{r: resp.Body}
	n, err := storage.WriteAtomic(dest, body)
	if err != nil {
		if body.err != nil {
			return 0, errs.Classify(body.err)
		}
		return 0, localError(err)
	}
	return n, nil
}

// bodyReader remembers a failed read so a broken transfer is not reported
// as a local write error
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		b.err = err
	}
	return n, err
}

// localError classifies a failure to store the body. The reason names the
// operation and cause but not the temporary path.
func localError(err error) *errs.Error {
	msg := err.Error()
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		msg = fmt.Sprintf("%s: %v", pathErr.Op, pathErr.Err)
	}
	return &errs.Error{Type: errs.ErrorTypeFilesystem, Message: msg, Err: err}
}
