package config

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader(t *testing.T, files map[string]string, env map[string]string) *Loader {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o600))
	}
	return &Loader{
		Fs: fs,
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}
}

func TestLoad_File(t *testing.T) {
	l := testLoader(t, map[string]string{
		"/etc/labstep.hcl": `
api_url     = "https://labstep.example.com/"
api_key     = env("LAB_KEY")
workspace   = 42
log_level   = "debug"
timeout     = "10s"
max_retries = 1

export {
  pdf = true
  s3 {
    region = "eu-west-2"
    bucket = "lab-archive"
    prefix = "exports"
  }
}
`,
	}, map[string]string{"LAB_KEY": "from-env"})

	cfg, err := l.Load("/etc/labstep.hcl")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, int64(42), cfg.Workspace)
	assert.Equal(t, hclog.Debug, cfg.Level())
	require.NotNil(t, cfg.S3())
	assert.Equal(t, "lab-archive", cfg.S3().Bucket)

	lc := cfg.Client(hclog.NewNullLogger())
	assert.Equal(t, "https://labstep.example.com", lc.Host)
	assert.Equal(t, 10*time.Second, lc.Timeout)
	assert.Equal(t, 1, lc.MaxRetries)
	assert.True(t, lc.ExportPDF)
	assert.Nil(t, lc.TLSVerify)
}

func TestLoad_ZeroRetries(t *testing.T) {
	l := testLoader(t, map[string]string{
		"/labstep.hcl": `
api_key     = "key"
max_retries = 0
`,
	}, nil)

	cfg, err := l.Load("/labstep.hcl")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Client(hclog.NewNullLogger()).MaxRetries)

	cfg, err = l.Load("/labstep.hcl")
	require.NoError(t, err)
	cfg.MaxRetries = nil
	assert.Equal(t, 3, cfg.Client(hclog.NewNullLogger()).MaxRetries)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	l := testLoader(t, map[string]string{
		"/labstep.hcl": `
api_url = "https://from-file.example.com"
api_key = "file-key"
`,
	}, map[string]string{
		EnvConfig:             "/labstep.hcl",
		EnvAPIURL:             "https://from-env.example.com",
		EnvInsecureSkipVerify: "true",
		EnvLogLevel:           "warn",
	})

	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.APIURL)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, hclog.Warn, cfg.Level())

	lc := cfg.Client(hclog.NewNullLogger())
	require.NotNil(t, lc.TLSVerify)
	assert.False(t, *lc.TLSVerify)
	assert.Nil(t, cfg.S3())
}

func TestLoad_EnvironmentOnly(t *testing.T) {
	l := testLoader(t, nil, map[string]string{
		EnvUsername: "alice",
		EnvPassword: "secret",
	})

	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, hclog.Info, cfg.Level())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		env      map[string]string
		errorMsg string
	}{
		{
			name:     "no credentials",
			file:     `api_url = "https://api.labstep.com"`,
			errorMsg: "API key",
		},
		{
			name:     "bad log level",
			file:     `api_key = "k"` + "\n" + `log_level = "loud"`,
			errorMsg: "log level",
		},
		{
			name:     "bad timeout",
			file:     `api_key = "k"` + "\n" + `timeout = "soon"`,
			errorMsg: "Timeout",
		},
		{
			name:     "s3 without bucket",
			file:     `api_key = "k"` + "\n" + "export {\n  s3 {\n    region = \"eu-west-2\"\n    bucket = \"\"\n  }\n}",
			errorMsg: "Bucket",
		},
		{
			name:     "syntax error",
			file:     `api_key = `,
			errorMsg: "failed to parse",
		},
		{
			name:     "bad insecure flag",
			file:     `api_key = "k"`,
			env:      map[string]string{EnvInsecureSkipVerify: "maybe"},
			errorMsg: EnvInsecureSkipVerify,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testLoader(t, map[string]string{"/c.hcl": tt.file}, tt.env)
			_, err := l.Load("/c.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	l := testLoader(t, nil, nil)
	_, err := l.Load("/nope.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
