package convert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labstep/labstep-go/pkg/transport"
)

func newTestConverter(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tc, err := transport.New(&transport.Config{
		BaseURL:    "https://api.labstep.com",
		APIKey:     "secret",
		RetryDelay: time.Millisecond,
		Logger:     hclog.NewNullLogger(),
	})
	require.NoError(t, err)

	return New(tc, Config{
		ConverterURL: server.URL + "/converter/",
		PDFURL:       server.URL + "/pdf",
	})
}

func TestClient_ToHTML(t *testing.T) {
	c := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/converter/", r.URL.Path)
		assert.Empty(t, r.Header.Get("apikey"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "html", req["type"])
		assert.NotNil(t, req["data"])

		_, _ = w.Write([]byte("<p>Hello</p>"))
	})

	html, err := c.ToHTML(context.Background(), map[string]interface{}{"type": "doc"})
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello</p>", html)
}

func TestClient_ToHTML_NilDocument(t *testing.T) {
	c := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "no request expected")
	})

	html, err := c.ToHTML(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestClient_ToProseMirror(t *testing.T) {
	c := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "prosemirror", req["type"])
		assert.Equal(t, "<p>Hello</p>", req["data"])

		_, _ = w.Write([]byte(`{"type":"doc","content":[]}`))
	})

	doc, err := c.ToProseMirror(context.Background(), "<p>Hello</p>")
	require.NoError(t, err)
	assert.Equal(t, "doc", doc["type"])
}

func TestClient_ToPDF(t *testing.T) {
	c := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pdf/", r.URL.Path)
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	pdf, err := c.ToPDF(context.Background(), "<p>Hello</p>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(pdf))
}

func TestClient_ServiceError(t *testing.T) {
	c := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad document"}`))
	})

	_, err := c.ToPDF(context.Background(), "<p>")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, transport.StatusCode(err))
	assert.Contains(t, err.Error(), "bad document")
}
