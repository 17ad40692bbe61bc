// ABOUTME: Per-session GitLab API client with bearer auth and proxy routing.
// ABOUTME: Redacts the session token from every logged error before propagating.

package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"github.com/2389/glab-gateway/internal/session"
)

// RequestOptions controls a single API request. A string Body is sent
// raw; any other non-nil Body is JSON-marshaled. Headers override the
// default Authorization and Content-Type.
type RequestOptions struct {
	Method  string
	Body    any
	Headers map[string]string
}

// Client issues requests against one session's GitLab instance. The
// configuration is frozen at construction; later changes to the
// session record are not observed.
type Client struct {
	sessionID  string
	config     *session.Config
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for the session. The network path (proxy
// or direct) is selected here, once, from the process environment.
func NewClient(sessionID string, cfg *session.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		sessionID: sessionID,
		config:    cfg,
		baseURL:   strings.TrimRight(cfg.APIURL, "/"),
		logger:    logger.With("component", "gitlab-client", "session_id", sessionID),
	}
	c.httpClient = &http.Client{Transport: c.selectTransport()}
	return c
}

// selectTransport resolves the proxy for the session's API URL scheme
// from HTTP_PROXY / HTTPS_PROXY / NO_PROXY. Any resolution failure
// falls back to a direct connection.
func (c *Client) selectTransport() http.RoundTripper {
	proxyCfg := httpproxy.FromEnvironment()
	if proxyCfg.HTTPProxy == "" && proxyCfg.HTTPSProxy == "" {
		return http.DefaultTransport
	}

	proxyFunc := proxyCfg.ProxyFunc()
	base, err := url.Parse(c.baseURL)
	if err != nil {
		c.logger.Warn("cannot resolve proxy for api url, using direct connection", "error", err)
		return http.DefaultTransport
	}
	proxyURL, err := proxyFunc(base)
	if err != nil {
		c.logger.Warn("proxy resolution failed, using direct connection", "error", err)
		return http.DefaultTransport
	}
	if proxyURL == nil {
		return http.DefaultTransport
	}

	c.logger.Debug("session traffic routed via proxy", "proxy", proxyURL.Redacted(), "scheme", base.Scheme)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
	return transport
}

// Request performs an API call against the session's GitLab instance.
// The endpoint is joined to the base URL with exactly one slash. On a
// non-2xx status the error is an *APIError carrying status and body;
// on success the decoded JSON value is returned when the response
// declares a JSON content type, otherwise the raw body text. Every
// failure is logged with the token redacted and returned unchanged —
// nothing is swallowed or retried here.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (any, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	fullURL := joinURL(c.baseURL, endpoint)

	result, err := c.do(ctx, method, fullURL, opts)
	if err != nil {
		c.logger.Error("gitlab api request failed",
			"method", method,
			"url", c.redact(fullURL),
			"error", c.redact(err.Error()),
		)
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, fullURL string, opts RequestOptions) (any, error) {
	var bodyReader io.Reader
	if opts.Body != nil {
		switch body := opts.Body.(type) {
		case string:
			bodyReader = strings.NewReader(body)
		default:
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshaling request body: %w", err)
			}
			bodyReader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		var parsed any
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parsing JSON response: %w", err)
		}
		return parsed, nil
	}
	return string(data), nil
}

// ValidateWriteOperation fails with a *PermissionError when the
// session is read-only; write tools call this before touching the API.
func (c *Client) ValidateWriteOperation(operation string) error {
	if c.config.ReadOnly {
		return &PermissionError{Operation: operation, SessionID: c.sessionID}
	}
	return nil
}

// WikiEnabled reports whether wiki tools are enabled for the session.
func (c *Client) WikiEnabled() bool { return c.config.UseWiki }

// MilestoneEnabled reports whether milestone tools are enabled.
func (c *Client) MilestoneEnabled() bool { return c.config.UseMilestone }

// PipelineEnabled reports whether pipeline tools are enabled.
func (c *Client) PipelineEnabled() bool { return c.config.UsePipeline }

// EffectiveProjectID resolves the project for a request: an explicit
// ID wins over the session default. Empty means no project resolved;
// callers decide how to fail.
func (c *Client) EffectiveProjectID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.config.ProjectID
}

// SessionID returns the session this client is bound to.
func (c *Client) SessionID() string { return c.sessionID }

// redact strips the session token from s. Tokens must never reach the
// logs, whichever error or URL carried them.
func (c *Client) redact(s string) string {
	if c.config.AccessToken == "" {
		return s
	}
	return strings.ReplaceAll(s, c.config.AccessToken, "[REDACTED]")
}

// joinURL joins base and endpoint with exactly one slash regardless of
// the slashes either side carries.
func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
