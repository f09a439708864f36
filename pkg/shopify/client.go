package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "shopfiles/pkg/errors"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/models"
	"shopfiles/pkg/retry"
)

const (
	// AccessTokenHeader carries the Admin API access token
	AccessTokenHeader = "X-Shopify-Access-Token"

	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultPageSize    = 50
	// MaxPageSize is the largest `first` the Admin API accepts
	MaxPageSize = 250
)

// ClientOptions configures a Client
type ClientOptions struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
	// MaxAttempts bounds attempts per GraphQL call for throttling, 5xx and
	// transport errors. Defaults to DefaultMaxAttempts.
	MaxAttempts int
	Backoff     retry.BackoffStrategy
	UserAgent   string
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// Client talks to the Shopify Admin GraphQL API
type Client struct {
	httpClient  *http.Client
	endpoint    string
	headers     map[string]string
	maxAttempts int
	backoff     retry.BackoffStrategy
	logger      logger.Logger
}

// NewClient creates a new Admin API client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = retry.NewErrorTypeBackoff()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "shopfiles"
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   opts.Endpoint,
		headers: map[string]string{
			AccessTokenHeader: opts.AccessToken,
			"Content-Type":    "application/json",
			"Accept":          "application/json",
			"User-Agent":      userAgent,
		},
		maxAttempts: attempts,
		backoff:     backoff,
		logger:      log.WithField("component", "shopify"),
	}, nil
}

// FetchPage returns one page of the store's file listing
func (c *Client) FetchPage(ctx context.Context, req models.PageRequest) (*models.Page, error) {
	first := req.PageSize
	if first <= 0 {
		first = DefaultPageSize
	}
	if first > MaxPageSize {
		first = MaxPageSize
	}

	var data filesData
	if err := c.query(ctx, FilesQuery, filesVariables(first, req.After), &data); err != nil {
		return nil, err
	}

	edges := data.Files.Edges
	page := &models.Page{
		HasNextPage: data.Files.PageInfo.HasNextPage,
		LastCursor:  data.Files.PageInfo.EndCursor,
		Items:       make([]models.AssetDescriptor, 0, len(edges)),
	}
	for _, edge := range edges {
		page.Items = append(page.Items, edge.Descriptor())
	}

	c.logger.DebugWithFields("Fetched files page", map[string]interface{}{
		"after":         req.After,
		"items":         len(page.Items),
		"has_next_page": page.HasNextPage,
	})
	return page, nil
}

// Shop returns the store the access token belongs to
func (c *Client) Shop(ctx context.Context) (*ShopInfo, error) {
	var data shopData
	if err := c.query(ctx, ShopQuery, nil, &data); err != nil {
		return nil, err
	}
	return &data.Shop, nil
}

// query runs a GraphQL operation with retries and decodes data into target
func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, target interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return errs.New(errs.ErrorTypeParsing, 0, "failed to encode request: %v", err)
	}

	return retry.Do(func() error {
		return c.doQuery(ctx, body, target)
	}, &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.logger.WarnWithFields("Retrying Admin API request", map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": c.maxAttempts,
				"reason":       errs.Reason(err),
				"delay":        delay,
			})
		},
	})
}

func (c *Client) doQuery(ctx context.Context, body []byte, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.New(errs.ErrorTypeClientError, 0, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("Admin API request failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return errs.Classify(err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("Admin API request completed", map[string]interface{}{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if err := c.checkResponseStatus(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Classify(err)
	}

	envelope := graphQLResponse[json.RawMessage]{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errs.New(errs.ErrorTypeParsing, 0, "failed to parse response: %v (body: %s)", err, preview(raw))
	}

	c.logCost(envelope.Extensions)

	if len(envelope.Errors) > 0 {
		err := graphQLErrorsToError(envelope.Errors)
		if err.Type == errs.ErrorTypeRateLimit && envelope.Extensions != nil {
			c.logger.WarnWithFields("Admin API query throttled", costFields(envelope.Extensions))
		}
		return err
	}
	if envelope.Data == nil {
		return errs.New(errs.ErrorTypeParsing, 0, "response has no data")
	}

	if err := json.Unmarshal(*envelope.Data, target); err != nil {
		return errs.New(errs.ErrorTypeParsing, 0, "failed to decode data: %v", err)
	}
	return nil
}

// checkResponseStatus maps a non-2xx status to a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	err := errs.FromStatus(resp.StatusCode)
	fields := map[string]interface{}{"status": resp.StatusCode}

	switch err.Type {
	case errs.ErrorTypeAuth:
		err.Message = "access token rejected"
		c.logger.WarnWithFields("Authentication error", fields)
	case errs.ErrorTypeNotFound:
		err.Message = "endpoint not found; check store domain and API version"
		c.logger.WarnWithFields("Resource not found", fields)
	case errs.ErrorTypeRateLimit:
		err.Message = "rate limit exceeded"
		c.logger.WarnWithFields("Rate limit exceeded", fields)
	case errs.ErrorTypeServerError:
		err.Message = "server error"
		c.logger.WarnWithFields("Server error", fields)
	default:
		c.logger.ErrorWithFields("Unexpected API status", fields)
	}
	return err
}

// logCost records the query cost and the remaining throttle budget
func (c *Client) logCost(ext *Extensions) {
	if ext == nil {
		return
	}
	c.logger.DebugWithFields("Admin API query cost", costFields(ext))
}

func costFields(ext *Extensions) map[string]interface{} {
	ts := ext.Cost.ThrottleStatus
	return map[string]interface{}{
		"requested_cost":      ext.Cost.RequestedQueryCost,
		"actual_cost":         ext.Cost.ActualQueryCost,
		"currently_available": ts.CurrentlyAvailable,
		"maximum_available":   ts.MaximumAvailable,
		"restore_rate":        ts.RestoreRate,
	}
}

// graphQLErrorsToError folds a GraphQL errors array into one typed error
func graphQLErrorsToError(list []GraphQLError) *errs.Error {
	messages := make([]string, 0, len(list))
	errorType := errs.ErrorTypeParsing
	for _, e := range list {
		messages = append(messages, e.Message)
		switch e.Extensions.Code {
		case "THROTTLED":
			errorType = errs.ErrorTypeRateLimit
		case "ACCESS_DENIED", "UNAUTHORIZED":
			if errorType != errs.ErrorTypeRateLimit {
				errorType = errs.ErrorTypeAuth
			}
		case "INTERNAL_SERVER_ERROR":
			if errorType == errs.ErrorTypeParsing {
				errorType = errs.ErrorTypeServerError
			}
		}
	}
	return errs.New(errorType, 0, "graphql: %s", strings.Join(messages, "; "))
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
