// Package convert talks to the remote document conversion services.
//
// Rich-text bodies (experiment entries, protocol steps) are stored by the
// Labstep API as ProseMirror documents. Rendering them as HTML, or turning
// HTML back into ProseMirror, is done by a converter service; HTML is
// rendered to PDF by a separate generator service. Both live on their own
// hosts and do not accept the API key, so every request is anonymous.
package convert

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/labstep/labstep-go/pkg/transport"
)

const (
	// DefaultConverterURL renders ProseMirror documents as HTML and back.
	DefaultConverterURL = "https://prosemirror-converter.labstep.com"

	// DefaultPDFURL renders HTML as PDF.
	DefaultPDFURL = "https://pdf-generator.labstep.com"
)

// Config contains the service endpoints.
type Config struct {
	ConverterURL string
	PDFURL       string
	Logger       hclog.Logger
}

// Client converts documents through the remote services.
type Client struct {
	transport    *transport.Client
	converterURL string
	pdfURL       string
	logger       hclog.Logger
}

// New creates a conversion client sharing t's timeout, retry and rate
// limit settings.
func New(t *transport.Client, cfg Config) *Client {
	if cfg.ConverterURL == "" {
		cfg.ConverterURL = DefaultConverterURL
	}
	if cfg.PDFURL == "" {
		cfg.PDFURL = DefaultPDFURL
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Client{
		transport:    t,
		converterURL: strings.TrimRight(cfg.ConverterURL, "/"),
		pdfURL:       strings.TrimRight(cfg.PDFURL, "/"),
		logger:       cfg.Logger.Named("convert"),
	}
}

type conversion struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ToHTML renders a ProseMirror document.
func (c *Client) ToHTML(ctx context.Context, doc interface{}) (string, error) {
	if doc == nil {
		return "", nil
	}
	body, err := c.transport.DoRaw(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      c.converterURL + "/",
		Body:      conversion{Type: "html", Data: doc},
		Anonymous: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to convert document to HTML: %w", err)
	}
	c.logger.Debug("converted document", "format", "html", "bytes", len(body))
	return string(body), nil
}

// ToProseMirror parses HTML into a ProseMirror document suitable for
// Experiment.SetEntry or Protocol.SetBody.
func (c *Client) ToProseMirror(ctx context.Context, html string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	err := c.transport.Do(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      c.converterURL + "/",
		Body:      conversion{Type: "prosemirror", Data: html},
		Anonymous: true,
	}, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to document: %w", err)
	}
	return doc, nil
}

// ToPDF renders HTML as a PDF document.
func (c *Client) ToPDF(ctx context.Context, html string) ([]byte, error) {
	body, err := c.transport.DoRaw(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      c.pdfURL + "/",
		Body:      map[string]string{"html": html},
		Anonymous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	c.logger.Debug("converted document", "format", "pdf", "bytes", len(body))
	return body, nil
}
