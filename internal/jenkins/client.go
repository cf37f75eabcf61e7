package jenkins

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// triggerAction is the path suffix of a parameterised build trigger.
const triggerAction = "buildWithParameters"

// maxLoggedBody bounds how much of a trigger response is logged.
const maxLoggedBody = 4 << 10

// Client triggers builds on a Jenkins server.
type Client struct {
	baseURL      string
	username     string
	apiToken     string
	strictStatus bool
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithStrictStatus makes non-2xx trigger responses count as failures.
func WithStrictStatus(strict bool) Option {
	return func(c *Client) { c.strictStatus = strict }
}

// Outcome records the result of a single trigger call.
type Outcome struct {
	Folder     string
	Job        string
	URL        string
	StatusCode int
	Success    bool
	Err        error
}

// New creates a client for baseURL (scheme, host and port).
func New(baseURL, username, apiToken string, httpClient *http.Client, logger *slog.Logger, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("jenkins base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse jenkins base url: %w", err)
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(false, 30*time.Second)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    baseURL,
		username:   username,
		apiToken:   apiToken,
		httpClient: httpClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewHTTPClient returns a client whose transport skips certificate
// verification when skipTLSVerify is set.
func NewHTTPClient(skipTLSVerify bool, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for internal CI
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// TriggerURL returns <base>/job/<folder>/<job>/buildWithParameters. An empty
// folder addresses a top-level job.
func (c *Client) TriggerURL(folder, job string) string {
	segments := []string{c.baseURL, "job"}
	if folder != "" {
		segments = append(segments, url.PathEscape(folder))
	}
	segments = append(segments, url.PathEscape(job), triggerAction)
	return strings.Join(segments, "/")
}

// Trigger asks Jenkins to start job in folder. Transport errors always fail
// the outcome; HTTP error statuses fail it only in strict mode.
func (c *Client) Trigger(ctx context.Context, folder, job string) Outcome {
	outcome := Outcome{Folder: folder, Job: job, URL: c.TriggerURL(folder, job)}

	endpoint, err := url.Parse(outcome.URL)
	if err != nil {
		outcome.Err = fmt.Errorf("parse trigger url: %w", err)
		return outcome
	}
	query := endpoint.Query()
	query.Set("token", c.apiToken)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		outcome.Err = fmt.Errorf("create request: %w", err)
		return outcome
	}
	req.SetBasicAuth(c.username, c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome.Err = fmt.Errorf("jenkins trigger request: %w", err)
		return outcome
	}
	defer resp.Body.Close()

	outcome.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	c.logger.Debug("jenkins trigger response",
		slog.String("url", outcome.URL),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("jenkins trigger status: %s", resp.Status)
		if c.strictStatus {
			outcome.Err = statusErr
			return outcome
		}
		c.logger.Warn("jenkins answered trigger with an error status",
			slog.String("url", outcome.URL),
			slog.Int("status", resp.StatusCode),
		)
	}

	outcome.Success = true
	return outcome
}

// CheckAccessibility queries the root API endpoint with the configured credentials.
func (c *Client) CheckAccessibility(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/json", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jenkins api request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxLoggedBody))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("jenkins access denied: %s", resp.Status)
	case resp.StatusCode >= 400:
		return fmt.Errorf("jenkins api status: %s", resp.Status)
	}
	return nil
}
