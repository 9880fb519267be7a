// Package config loads CLI settings from an HCL file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/labstep/labstep-go/pkg/export"
	"github.com/labstep/labstep-go/pkg/labstep"
)

// Environment variables that override file settings.
const (
	EnvConfig             = "LABSTEP_CONFIG"
	EnvAPIURL             = "LABSTEP_API_URL"
	EnvAPIKey             = "LABSTEP_API_KEY"
	EnvUsername           = "LABSTEP_USERNAME"
	EnvPassword           = "LABSTEP_PASSWORD"
	EnvInsecureSkipVerify = "LABSTEP_INSECURE_SKIP_VERIFY"
	EnvLogLevel           = "LABSTEP_LOG_LEVEL"
)

// Config is the CLI configuration file:
//
//	api_url  = "https://api.labstep.com"
//	api_key  = env("LABSTEP_API_KEY")
//	workspace = 42
//
//	export {
//	  pdf = true
//	  s3 {
//	    region = "eu-west-2"
//	    bucket = "lab-archive"
//	  }
//	}
type Config struct {
	APIURL     string  `hcl:"api_url,optional"`
	WebAppURL  string  `hcl:"webapp_url,optional"`
	APIKey     string  `hcl:"api_key,optional"`
	Username   string  `hcl:"username,optional"`
	Password   string  `hcl:"password,optional"`
	Workspace  int64   `hcl:"workspace,optional"`
	LogLevel   string  `hcl:"log_level,optional"`
	Timeout    string  `hcl:"timeout,optional"`
	MaxRetries *int    `hcl:"max_retries,optional"`
	RateLimit  float64 `hcl:"rate_limit,optional"`
	Tracing    bool    `hcl:"tracing,optional"`

	InsecureSkipVerify bool `hcl:"insecure_skip_verify,optional"`

	Export *Export `hcl:"export,block"`
}

// Export configures the export command.
type Export struct {
	PDF          bool             `hcl:"pdf,optional"`
	ConverterURL string           `hcl:"converter_url,optional"`
	PDFURL       string           `hcl:"pdf_url,optional"`
	S3           *export.S3Config `hcl:"s3,block"`
}

// Loader reads configuration. The zero value is not usable; see
// NewLoader.
type Loader struct {
	Fs        afero.Fs
	LookupEnv func(string) (string, bool)
}

// NewLoader returns a loader backed by the OS filesystem and environment.
func NewLoader() *Loader {
	return &Loader{Fs: afero.NewOsFs(), LookupEnv: os.LookupEnv}
}

// Load reads path, applies environment overrides and validates the
// result. An empty path falls back to $LABSTEP_CONFIG; when neither is
// set only the environment is used.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		path, _ = l.LookupEnv(EnvConfig)
	}

	cfg := &Config{}
	if path != "" {
		src, err := afero.ReadFile(l.Fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := hclsimple.Decode(path, src, l.evalContext(), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(l.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// evalContext exposes env("NAME") to config files.
func (l *Loader) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": function.New(&function.Spec{
				Params: []function.Parameter{{Name: "name", Type: cty.String}},
				Type:   function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
					v, _ := l.LookupEnv(args[0].AsString())
					return cty.StringVal(v), nil
				},
			}),
		},
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		EnvAPIURL:   &c.APIURL,
		EnvAPIKey:   &c.APIKey,
		EnvUsername: &c.Username,
		EnvPassword: &c.Password,
		EnvLogLevel: &c.LogLevel,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup(EnvInsecureSkipVerify); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvInsecureSkipVerify, err)
		}
		c.InsecureSkipVerify = b
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIKey, validation.By(c.credentials)),
		validation.Field(&c.LogLevel, validation.By(logLevel)),
		validation.Field(&c.Timeout, validation.By(duration)),
		validation.Field(&c.Workspace, validation.Min(int64(0))),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.Export),
	)
}

// Validate checks the export block.
func (e *Export) Validate() error {
	if e == nil || e.S3 == nil {
		return nil
	}
	return e.S3.Validate()
}

func (c *Config) credentials(interface{}) error {
	if c.APIKey != "" {
		return nil
	}
	if c.Username == "" || c.Password == "" {
		return errors.New("an API key or a username and password are required")
	}
	return nil
}

func logLevel(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if hclog.LevelFromString(s) == hclog.NoLevel {
		return fmt.Errorf("unknown log level %q", s)
	}
	return nil
}

func duration(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

// Level returns the configured log level, Info by default.
func (c *Config) Level() hclog.Level {
	if l := hclog.LevelFromString(c.LogLevel); l != hclog.NoLevel {
		return l
	}
	return hclog.Info
}

// Client returns the labstep client configuration.
func (c *Config) Client(logger hclog.Logger) *labstep.Config {
	lc := labstep.DefaultConfig()
	if c.APIURL != "" {
		lc.Host = strings.TrimRight(c.APIURL, "/")
	}
	if c.WebAppURL != "" {
		lc.WebAppURL = c.WebAppURL
	}
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		lc.Timeout = d
	}
	if c.MaxRetries != nil {
		lc.MaxRetries = *c.MaxRetries
	}
	if c.InsecureSkipVerify {
		verify := false
		lc.TLSVerify = &verify
	}
	lc.RateLimit = c.RateLimit
	lc.Tracing = c.Tracing
	if c.Export != nil {
		lc.ExportPDF = c.Export.PDF
		if c.Export.ConverterURL != "" {
			lc.ConverterURL = c.Export.ConverterURL
		}
		if c.Export.PDFURL != "" {
			lc.PDFURL = c.Export.PDFURL
		}
	}
	lc.Logger = logger
	return lc
}

// S3 returns the S3 export settings, or nil when exports go to disk.
func (c *Config) S3() *export.S3Config {
	if c.Export == nil {
		return nil
	}
	return c.Export.S3
}
