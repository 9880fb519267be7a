package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := &Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		MaxRetries: DefaultMaxRetries,
		RetryDelay: time.Millisecond,
		Logger:     hclog.NewNullLogger(),
	}
	for _, m := range mutate {
		m(cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

// statusSequence serves the given statuses in order, then 200 forever.
func statusSequence(calls *int32, statuses ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(calls, 1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "name": "ok"}`))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		wantError bool
		errorMsg  string
	}{
		{
			name:   "Valid config",
			config: &Config{BaseURL: "https://api.labstep.com", Timeout: time.Second},
		},
		{
			name:      "Missing base URL",
			config:    &Config{Timeout: time.Second},
			wantError: true,
			errorMsg:  "baseUrl",
		},
		{
			name:      "Invalid URL scheme",
			config:    &Config{BaseURL: "ftp://api.labstep.com", Timeout: time.Second},
			wantError: true,
			errorMsg:  "scheme",
		},
		{
			name:      "Negative timeout",
			config:    &Config{BaseURL: "https://api.labstep.com", Timeout: -time.Second},
			wantError: true,
			errorMsg:  "timeout",
		},
		{
			name:      "Negative max retries",
			config:    &Config{BaseURL: "https://api.labstep.com", Timeout: time.Second, MaxRetries: -1},
			wantError: true,
			errorMsg:  "max retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "labstep-go/"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/api/generic/experiment_workflow", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("search"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "My experiment", body["name"])

		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	var out struct {
		ID int64 `json:"id"`
	}
	err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/generic/experiment_workflow",
		Query:  map[string][]string{"search": {"1"}},
		Body:   map[string]string{"name": "My experiment"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.ID)
}

func TestClient_AnonymousRequestCarriesNoCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("apikey"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	c := newTestClient(t, "https://api.labstep.com", func(cfg *Config) {
		cfg.BearerToken = "opaque-token"
	})

	body, err := c.DoRaw(context.Background(), Request{
		Method:    http.MethodGet,
		Path:      server.URL + "/signed/file.txt",
		Anonymous: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestClient_BearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.APIKey = ""
		cfg.BearerToken = "opaque-token"
	})

	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/generic/user/me"}, nil))
	assert.True(t, c.TokenExpiry().IsZero())
}

func TestClient_ExpiredBearerTokenFailsFast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(statusSequence(&calls))
	defer server.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.BearerToken = signed
	})
	assert.False(t, c.TokenExpiry().IsZero())

	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/generic/user/me"}, nil)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(statusSequence(&calls, http.StatusServiceUnavailable, http.StatusServiceUnavailable))
	defer server.Close()

	c := newTestClient(t, server.URL)

	var out map[string]interface{}
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/generic/resource/7"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out["name"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(statusSequence(&calls,
		http.StatusServiceUnavailable,
		http.StatusServiceUnavailable,
		http.StatusServiceUnavailable,
		http.StatusServiceUnavailable,
	))
	defer server.Close()

	c := newTestClient(t, server.URL)

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/generic/resource/7"}, nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
	assert.Contains(t, reqErr.Body, "unavailable")
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClient_ZeroRetriesMakesOneAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.MaxRetries = 0
	})

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/generic/resource/7"}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RetryStatuses(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		status    int
		wantCalls int32
	}{
		{name: "GET 501 retried", method: http.MethodGet, status: http.StatusNotImplemented, wantCalls: 2},
		{name: "GET 502 retried", method: http.MethodGet, status: http.StatusBadGateway, wantCalls: 2},
		{name: "GET 504 retried", method: http.MethodGet, status: http.StatusGatewayTimeout, wantCalls: 2},
		{name: "PUT 503 retried", method: http.MethodPut, status: http.StatusServiceUnavailable, wantCalls: 2},
		{name: "GET 500 not retried", method: http.MethodGet, status: http.StatusInternalServerError, wantCalls: 1},
		{name: "POST 503 not retried", method: http.MethodPost, status: http.StatusServiceUnavailable, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(statusSequence(&calls, tt.status))
			defer server.Close()

			c := newTestClient(t, server.URL)
			_ = c.Do(context.Background(), Request{Method: tt.method, Path: "/api/generic/tag"}, nil)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestClient_Non200IsError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "created", status: http.StatusCreated},
		{name: "no content", status: http.StatusNoContent},
		{name: "not found", status: http.StatusNotFound},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/generic/device/1"}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, tt.status == http.StatusNotFound, IsNotFound(err))
		})
	}
}

func TestClient_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("group_id"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "hello", string(data))

		_, _ = w.Write([]byte(`{"id": 9, "name": "notes.txt"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	var out map[string]interface{}
	err := c.Upload(context.Background(), "/api/generic/file/upload", Form{
		Filename: "notes.txt",
		Content:  strings.NewReader("hello"),
		Fields:   map[string]string{"group_id": "42"},
	}, &out)
	require.NoError(t, err)
	assert.EqualValues(t, 9, out["id"])
}

func TestClient_WithAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rotated", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	rotated := c.WithAPIKey("rotated")

	assert.Equal(t, "test-key", c.APIKey())
	assert.Equal(t, "rotated", rotated.APIKey())
	require.NoError(t, rotated.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://bucket.s3.amazonaws.com/file.txt",
		redact("https://bucket.s3.amazonaws.com/file.txt?X-Amz-Signature=abc&X-Amz-Expires=60"))
	assert.Equal(t, "https://api.labstep.com/api/generic/tag?search=1",
		redact("https://api.labstep.com/api/generic/tag?search=1"))
}
