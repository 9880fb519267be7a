package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/labstep/labstep-go/internal/version"
)

// Client sends requests to the Labstep API. It applies default headers,
// per-attempt timeouts and the retry policy for 501-504 responses.
//
// A Client is safe for concurrent use; credentials are fixed at
// construction and replaced by deriving a new Client.
type Client struct {
	config  Config
	http    *http.Client // carries bearer auth when configured
	plain   *http.Client // never carries credentials
	limiter *rate.Limiter
	logger  hclog.Logger
	expiry  time.Time
}

// Request describes a single API call.
type Request struct {
	Method string

	// Path is either relative to the configured BaseURL ("/api/generic/tag")
	// or an absolute URL (signed download links, conversion services).
	Path  string
	Query url.Values

	// Body is JSON encoded when non-nil.
	Body interface{}

	// Anonymous requests carry no apikey or Authorization header.
	Anonymous bool

	raw         []byte
	contentType string
}

// Form is a multipart upload with a single file part.
type Form struct {
	FieldName string
	Filename  string
	Content   io.Reader
	Fields    map[string]string
}

// New creates a transport client. The config is copied; later changes to
// cfg do not affect the client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conf := *cfg
	conf.setDefaults()

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}

	c := &Client{
		config: conf,
		logger: conf.Logger.Named("transport"),
	}
	if conf.RateLimit > 0 {
		burst := int(conf.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(conf.RateLimit), burst)
	}
	c.init()
	return c, nil
}

func (c *Client) init() {
	base := c.config.newHTTPClient()
	c.plain = base
	c.http = base
	c.expiry = time.Time{}

	if c.config.BearerToken != "" {
		c.expiry = tokenExpiry(c.config.BearerToken)
		authed := *base
		authed.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: c.config.BearerToken,
				TokenType:   "Bearer",
			}),
			Base: base.Transport,
		}
		c.http = &authed
	}
}

// WithAPIKey returns a copy of the client that authenticates with key.
// The rate limiter is shared with the receiver.
func (c *Client) WithAPIKey(key string) *Client {
	n := &Client{config: c.config, limiter: c.limiter, logger: c.logger}
	n.config.APIKey = key
	n.init()
	return n
}

// WithBearerToken returns a copy of the client that authenticates with a
// bearer token.
func (c *Client) WithBearerToken(token string) *Client {
	n := &Client{config: c.config, limiter: c.limiter, logger: c.logger}
	n.config.BearerToken = token
	n.init()
	return n
}

// BaseURL returns the configured API host.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// APIKey returns the API key in use, if any.
func (c *Client) APIKey() string {
	return c.config.APIKey
}

// TokenExpiry returns the exp claim of a JWT bearer token, or the zero time
// for opaque tokens and API key auth.
func (c *Client) TokenExpiry() time.Time {
	return c.expiry
}

// Do executes req and decodes a JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	body, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Upload posts a multipart form and decodes the JSON response into out.
func (c *Client) Upload(ctx context.Context, path string, form Form, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range form.Fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write form field %q: %w", k, err)
		}
	}

	fieldName := form.FieldName
	if fieldName == "" {
		fieldName = "file"
	}
	part, err := w.CreateFormFile(fieldName, form.Filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, form.Content); err != nil {
		return fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		raw:         buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, out)
}

// DoRaw executes req and returns the raw response body of a 200 response.
//
// Idempotent requests answered with 501, 502, 503 or 504 are retried up to
// MaxRetries times with exponential backoff. Everything else, including
// connection errors and timeouts, fails on the first attempt.
func (c *Client) DoRaw(ctx context.Context, req Request) ([]byte, error) {
	if !req.Anonymous && !c.expiry.IsZero() && time.Now().After(c.expiry) {
		return nil, ErrTokenExpired
	}

	endpoint, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	payload, contentType, err := req.encode()
	if err != nil {
		return nil, err
	}

	client := c.http
	if req.Anonymous {
		client = c.plain
	}

	var (
		result  []byte
		attempt int
	)
	operation := func() error {
		attempt++

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		c.setHeaders(httpReq, req, contentType)

		resp, err := client.Do(httpReq)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("request failed: %w", err))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read response: %w", err))
		}

		c.logger.Debug("api request",
			"method", req.Method,
			"url", redact(endpoint),
			"status", resp.StatusCode,
			"attempt", attempt)

		if resp.StatusCode != http.StatusOK {
			reqErr := &RequestError{
				Method:     req.Method,
				URL:        redact(endpoint),
				StatusCode: resp.StatusCode,
				Body:       string(respBody),
			}
			if retryable(resp.StatusCode) && idempotent(req.Method) {
				return reqErr
			}
			return backoff.Permanent(reqErr)
		}

		result = respBody
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying request", "method", req.Method, "url", redact(endpoint), "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, c.backOff(ctx), notify); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.MaxRetries)), ctx)
}

// resolve builds the absolute URL for req.
func (c *Client) resolve(req Request) (string, error) {
	raw := req.Path
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", raw, err)
	}

	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

func (c *Client) setHeaders(httpReq *http.Request, req Request, contentType string) {
	httpReq.Header.Set("Accept", "application/json")

	userAgent := c.config.UserAgent
	if userAgent == "" {
		userAgent = "labstep-go/" + version.Version
	}
	httpReq.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if !req.Anonymous && c.config.APIKey != "" {
		httpReq.Header.Set("apikey", c.config.APIKey)
	}
}

func (r Request) encode() ([]byte, string, error) {
	if r.raw != nil {
		return r.raw, r.contentType, nil
	}
	if r.Body == nil {
		return nil, "", nil
	}
	b, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return b, "application/json", nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server remains the authority on token validity.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// redact strips signed query strings from URLs before they reach logs or
// error messages.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	if u.Query().Has("X-Amz-Signature") || u.Query().Has("Signature") {
		u.RawQuery = ""
	}
	return u.String()
}
