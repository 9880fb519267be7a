package labstep

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/labstep/labstep-go/pkg/convert"
	"github.com/labstep/labstep-go/pkg/transport"
)

// DefaultWebAppURL is the host of the Labstep web application.
const DefaultWebAppURL = "https://app.labstep.com"

// Config configures a Client. It is copied when the client is created, so
// later changes have no effect on existing sessions.
type Config struct {
	// Host is the API base URL.
	// Default: https://api.labstep.com
	Host string

	// WebAppURL is used to build browser links to entities.
	// Default: https://app.labstep.com
	WebAppURL string

	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// TLSVerify disables certificate verification when explicitly false.
	TLSVerify *bool

	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64

	// Tracing enables Datadog tracing of outgoing requests.
	Tracing bool

	// ConverterURL and PDFURL locate the document conversion services.
	ConverterURL string
	PDFURL       string

	// ExportPDF makes exports render rich-text bodies as PDF in addition
	// to HTML.
	ExportPDF bool

	// Fs is used for path based uploads. Default: the OS filesystem.
	Fs afero.Fs

	Logger hclog.Logger
}

// DefaultConfig returns a Config pointing at the production API.
func DefaultConfig() *Config {
	return &Config{
		Host:         transport.DefaultBaseURL,
		WebAppURL:    DefaultWebAppURL,
		Timeout:      transport.DefaultTimeout,
		MaxRetries:   transport.DefaultMaxRetries,
		RetryDelay:   transport.DefaultRetryDelay,
		ConverterURL: convert.DefaultConverterURL,
		PDFURL:       convert.DefaultPDFURL,
	}
}

func (c *Config) setDefaults() {
	if c.WebAppURL == "" {
		c.WebAppURL = DefaultWebAppURL
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
}

func (c *Config) transport() *transport.Config {
	return &transport.Config{
		BaseURL:    c.Host,
		UserAgent:  c.UserAgent,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
		TLSVerify:  c.TLSVerify,
		RateLimit:  c.RateLimit,
		Tracing:    c.Tracing,
		Logger:     c.Logger,
	}
}
