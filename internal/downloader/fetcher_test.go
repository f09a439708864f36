package downloader

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "shopfiles/pkg/errors"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/metrics"
	"shopfiles/pkg/storage"
)

func newTestFetcher(t *testing.T, log logger.Logger) (*Fetcher, string, *metrics.Metrics) {
	t.Helper()
	failurePath := filepath.Join(t.TempDir(), "failed_downloads.txt")
	m := metrics.New()
	f := NewFetcher(FetcherOptions{
		RequestTimeout: 2 * time.Second,
		RetryDelay:     time.Millisecond,
		Failures:       storage.NewFailureLog(failurePath),
		Metrics:        m,
		Logger:         log,
	})
	return f, failurePath, m
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pdf-bytes"))
	}))
	defer server.Close()

	f, failurePath, m := newTestFetcher(t, logger.NewTestLogger())
	dest := filepath.Join(t.TempDir(), "report.pdf")

	outcome := f.Fetch(context.Background(), server.URL+"/a/report.pdf?sig=1", dest, 3)

	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, int64(9), outcome.Bytes)
	assert.Empty(t, outcome.Reason)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
	assert.NoFileExists(t, failurePath)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("success")))
}

func TestFetchExhaustsOnServerErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tl := logger.NewTestLogger()
	f, failurePath, m := newTestFetcher(t, tl)
	dest := filepath.Join(t.TempDir(), "img.png")
	url := server.URL + "/img.png"

	outcome := f.Fetch(context.Background(), url, dest, 3)

	assert.False(t, outcome.Success)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, "HTTP 500", outcome.Reason)
	assert.Equal(t, errs.ErrorTypeServerError, outcome.ErrorType)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))

	warnings := tl.GetMessagesByLevel("WARN")
	require.Len(t, warnings, 2)
	assert.Equal(t, 1, warnings[0].Fields["attempt"])
	assert.Equal(t, 3, warnings[0].Fields["max_attempts"])
	assert.Equal(t, "HTTP 500", warnings[1].Fields["reason"])
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)

	data, err := os.ReadFile(failurePath)
	require.NoError(t, err)
	assert.Equal(t, url+" | HTTP 500\n", string(data))
	assert.NoFileExists(t, dest)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DownloadRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("failure")))
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, failurePath, _ := newTestFetcher(t, logger.NewTestLogger())
	dest := filepath.Join(t.TempDir(), "a.txt")

	outcome := f.Fetch(context.Background(), server.URL+"/a.txt", dest, 3)

	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	assert.FileExists(t, dest)
	assert.NoFileExists(t, failurePath)
}

func TestFetchClampsAttempts(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, _, _ := newTestFetcher(t, logger.NewTestLogger())
	outcome := f.Fetch(context.Background(), server.URL+"/x", filepath.Join(t.TempDir(), "x"), 0)

	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, "HTTP 404", outcome.Reason)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestFetchConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	f, failurePath, _ := newTestFetcher(t, logger.NewTestLogger())
	url := "http://" + addr + "/a.png"
	outcome := f.Fetch(context.Background(), url, filepath.Join(t.TempDir(), "a.png"), 2)

	assert.False(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, "ECONNREFUSED", outcome.Reason)

	data, err := os.ReadFile(failurePath)
	require.NoError(t, err)
	assert.Equal(t, url+" | ECONNREFUSED\n", string(data))
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewFetcher(FetcherOptions{
		RequestTimeout: 50 * time.Millisecond,
		Logger:         logger.NewNopLogger(),
	})
	outcome := f.Fetch(context.Background(), server.URL+"/slow", filepath.Join(t.TempDir(), "slow"), 1)

	assert.False(t, outcome.Success)
	assert.Equal(t, "ETIMEDOUT", outcome.Reason)
	assert.Equal(t, errs.ErrorTypeTimeout, outcome.ErrorType)
}

func TestFetchMissingDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	f, _, _ := newTestFetcher(t, logger.NewTestLogger())
	dest := filepath.Join(t.TempDir(), "missing", "a.bin")
	outcome := f.Fetch(context.Background(), server.URL+"/a.bin", dest, 2)

	assert.False(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, errs.ErrorTypeFilesystem, outcome.ErrorType)
	assert.Equal(t, "open: no such file or directory", outcome.Reason)
	assert.NoFileExists(t, dest)
}

func TestFetchTruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("partial"))
	}))
	defer server.Close()

	f, failurePath, _ := newTestFetcher(t, logger.NewTestLogger())
	dir := t.TempDir()
	dest := filepath.Join(dir, "report.pdf")
	url := server.URL + "/report.pdf"
	outcome := f.Fetch(context.Background(), url, dest, 2)

	assert.False(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, errs.ErrorTypeNetwork, outcome.ErrorType)
	assert.Equal(t, "unexpected EOF", outcome.Reason)
	assert.NoFileExists(t, dest)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	data, err := os.ReadFile(failurePath)
	require.NoError(t, err)
	assert.Equal(t, url+" | unexpected EOF\n", string(data))
}

func TestFetchCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, failurePath, _ := newTestFetcher(t, logger.NewTestLogger())
	url := server.URL + "/a"
	outcome := f.Fetch(ctx, url, filepath.Join(t.TempDir(), "a"), 3)

	assert.False(t, outcome.Success)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, "canceled", outcome.Reason)

	data, err := os.ReadFile(failurePath)
	require.NoError(t, err)
	assert.Equal(t, url+" | canceled\n", string(data))
}
