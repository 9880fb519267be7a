package transport

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	httptrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/net/http"
)

const (
	// DefaultBaseURL is the production Labstep API host.
	DefaultBaseURL = "https://api.labstep.com"

	// DefaultTimeout applies to every single HTTP attempt.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of retries on 501-504 responses.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial backoff interval between retries.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Config contains configuration for the Labstep HTTP transport.
type Config struct {
	// BaseURL is the API host, e.g. "https://api.labstep.com".
	BaseURL string `json:"baseUrl"`

	// APIKey is sent as the "apikey" header on every authenticated request.
	APIKey string `json:"-"`

	// BearerToken is sent as "Authorization: Bearer" for endpoints that
	// expect token auth. Either or both of APIKey and BearerToken may be set.
	BearerToken string `json:"-"`

	// UserAgent overrides the default user agent.
	UserAgent string `json:"userAgent,omitempty"`

	// Timeout for a single HTTP attempt.
	// Default: 60 seconds
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries for 501/502/503/504 responses on idempotent requests.
	// Zero disables retries. DefaultConfig sets 3.
	MaxRetries int `json:"maxRetries,omitempty"`

	// RetryDelay is the initial exponential backoff interval.
	// Default: 500 milliseconds
	RetryDelay time.Duration `json:"retryDelay,omitempty"`

	// TLSVerify controls TLS certificate verification.
	// Set to false only for development/testing with self-signed certs.
	TLSVerify *bool `json:"tlsVerify,omitempty"`

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64 `json:"rateLimit,omitempty"`

	// Tracing wraps the HTTP client with Datadog APM tracing.
	Tracing bool `json:"tracing,omitempty"`

	Logger hclog.Logger `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	tlsVerify := true
	return &Config{
		BaseURL:    DefaultBaseURL,
		TLSVerify:  &tlsVerify,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// setDefaults fills zero values. Negative values are left for Validate.
// MaxRetries is not touched since zero is meaningful.
func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TLSVerify == nil {
		tlsVerify := true
		c.TLSVerify = &tlsVerify
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(1)).Error("timeout must be positive")),
		validation.Field(&c.MaxRetries, validation.Min(0).Error("max retries must be non-negative")),
		validation.Field(&c.RetryDelay, validation.Min(time.Duration(0)).Error("retry delay must be non-negative")),
		validation.Field(&c.RateLimit, validation.Min(float64(0)).Error("rate limit must be non-negative")),
	)
}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https scheme")
	}
	return nil
}

// newHTTPClient creates the unauthenticated base HTTP client.
func (c *Config) newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if c.TLSVerify != nil && !*c.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in for self-signed dev hosts
		}
	}

	client := &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
	if c.Tracing {
		client = httptrace.WrapClient(client, httptrace.RTWithServiceName("labstep-client"))
	}
	return client
}
