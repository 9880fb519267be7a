package labstep

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/labstep/labstep-go/pkg/convert"
	"github.com/labstep/labstep-go/pkg/entityid"
	"github.com/labstep/labstep-go/pkg/transport"
)

const loginPath = "/public-api/user/login"

// Client is an authenticated Labstep session.
//
// Configuration and credentials are fixed for the lifetime of the client.
// The active workspace may be changed at any time with SetWorkspace; the
// last writer wins.
type Client struct {
	config    Config
	transport *transport.Client
	converter *convert.Client
	fs        afero.Fs
	logger    hclog.Logger

	user      *User
	workspace atomic.Int64
}

func newClient(cfg *Config, creds func(*transport.Config)) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conf := *cfg
	conf.setDefaults()

	tc := conf.transport()
	if creds != nil {
		creds(tc)
	}
	t, err := transport.New(tc)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:    conf,
		transport: t,
		converter: convert.New(t, convert.Config{
			ConverterURL: conf.ConverterURL,
			PDFURL:       conf.PDFURL,
			Logger:       conf.Logger,
		}),
		fs:     conf.Fs,
		logger: conf.Logger.Named("labstep"),
	}, nil
}

// Login exchanges a username and password for an API key. The user's home
// workspace becomes the active workspace.
func Login(ctx context.Context, cfg *Config, username, password string) (*Client, error) {
	err := validation.Errors{
		"username": validation.Validate(username, validation.Required),
		"password": validation.Validate(password, validation.Required),
	}.Filter()
	if err != nil {
		return nil, validationError(err)
	}

	c, err := newClient(cfg, nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	err = c.transport.Do(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      loginPath,
		Body:      map[string]string{"username": username, "password": password},
		Anonymous: true,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}

	apiKey, _ := raw["api_key"].(string)
	if apiKey == "" {
		return nil, fmt.Errorf("failed to log in: response carried no API key")
	}
	c.transport = c.transport.WithAPIKey(apiKey)
	c.converter = convert.New(c.transport, convert.Config{
		ConverterURL: c.config.ConverterURL,
		PDFURL:       c.config.PDFURL,
		Logger:       c.config.Logger,
	})

	if err := c.adopt(raw); err != nil {
		return nil, err
	}
	c.logger.Info("logged in", "user", c.user.Username, "workspace", c.ActiveWorkspace())
	return c, nil
}

// Authenticate starts a session from an existing API key.
func Authenticate(ctx context.Context, cfg *Config, apiKey string) (*Client, error) {
	if err := validation.Validate(apiKey, validation.Required.Error("API key is required")); err != nil {
		return nil, validationError(err)
	}
	c, err := newClient(cfg, func(tc *transport.Config) {
		tc.APIKey = apiKey
	})
	if err != nil {
		return nil, err
	}
	return c, c.authenticate(ctx)
}

// AuthenticateBearer starts a session from a bearer token, for endpoints
// that expect "Authorization: Bearer".
func AuthenticateBearer(ctx context.Context, cfg *Config, token string) (*Client, error) {
	if err := validation.Validate(token, validation.Required.Error("bearer token is required")); err != nil {
		return nil, validationError(err)
	}
	c, err := newClient(cfg, func(tc *transport.Config) {
		tc.BearerToken = token
	})
	if err != nil {
		return nil, err
	}
	return c, c.authenticate(ctx)
}

func (c *Client) authenticate(ctx context.Context) error {
	raw, err := c.fetch(ctx, KindUser, "me")
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := c.adopt(raw); err != nil {
		return err
	}
	c.logger.Debug("authenticated", "user", c.user.Username, "workspace", c.ActiveWorkspace())
	return nil
}

func (c *Client) adopt(raw map[string]interface{}) error {
	user := &User{}
	if err := c.bind(user, KindUser, raw); err != nil {
		return err
	}
	c.user = user
	if user.Group != nil {
		c.workspace.Store(user.Group.ID)
	}
	return nil
}

// User returns the authenticated user as of session start.
func (c *Client) User() *User {
	return c.user
}

// ActiveWorkspace returns the id of the active workspace, or 0 when none
// is set.
func (c *Client) ActiveWorkspace() int64 {
	return c.workspace.Load()
}

// SetWorkspace changes the active workspace.
func (c *Client) SetWorkspace(id int64) {
	c.workspace.Store(id)
}

func (c *Client) requireWorkspace() (int64, error) {
	ws := c.ActiveWorkspace()
	if ws == 0 {
		return 0, ErrNoActiveWorkspace
	}
	return ws, nil
}

// Converter returns the document conversion client.
func (c *Client) Converter() *convert.Client {
	return c.converter
}

// Transport returns the underlying HTTP transport for endpoints without a
// typed wrapper.
func (c *Client) Transport() *transport.Client {
	return c.transport
}

// URL returns the web app link for o.
func (c *Client) URL(o Object) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.config.WebAppURL, "/"), o.Kind().Route(), o.Key())
}

// Lookup fetches one entity of any kind. Known kinds come back as their
// typed wrapper (*Experiment, *Resource, ...), others as *Entity.
func (c *Client) Lookup(ctx context.Context, kind Kind, key string) (Object, error) {
	key, err := canonicalKey(kind, key)
	if err != nil {
		return nil, err
	}
	raw, err := c.fetch(ctx, kind, key)
	if err != nil {
		return nil, err
	}
	rec := newRecord(kind)
	if err := c.bind(rec, kind, raw); err != nil {
		return nil, err
	}
	return rec, nil
}

// canonicalKey checks that key can address an entity of kind and returns
// it in the form the API expects: a lowercase guid for GUID-keyed kinds, a
// positive integer id for the rest.
func canonicalKey(kind Kind, key string) (string, error) {
	if kind.GUIDKeyed() {
		guid, err := entityid.ParseGUID(key)
		if err != nil {
			return "", fmt.Errorf("%w: %s key: %w", ErrValidation, kind, err)
		}
		return guid.String(), nil
	}
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("%w: %s key %q is not an id", ErrValidation, kind, key)
	}
	return strconv.FormatInt(id, 10), nil
}

// Search lists entities of any kind, typed as in Lookup.
func (c *Client) Search(ctx context.Context, kind Kind, opts ListOptions) ([]Object, error) {
	raws, err := c.list(ctx, kind, opts)
	if err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(raws))
	for _, raw := range raws {
		rec := newRecord(kind)
		if err := c.bind(rec, kind, raw); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func newRecord(kind Kind) record {
	switch kind {
	case KindExperiment:
		return &Experiment{}
	case KindExperimentProtocol:
		return &ExperimentProtocol{}
	case KindProtocol:
		return &Protocol{}
	case KindResource:
		return &Resource{}
	case KindResourceCategory:
		return &ResourceCategory{}
	case KindResourceItem:
		return &ResourceItem{}
	case KindResourceLocation:
		return &ResourceLocation{}
	case KindDevice:
		return &Device{}
	case KindOrderRequest:
		return &OrderRequest{}
	case KindPurchaseOrder:
		return &PurchaseOrder{}
	case KindWorkspace:
		return &Workspace{}
	case KindWorkspaceMember:
		return &WorkspaceMember{}
	case KindOrganization:
		return &Organization{}
	case KindOrganizationUser:
		return &OrganizationUser{}
	case KindUser:
		return &User{}
	case KindFile:
		return &File{}
	case KindComment:
		return &Comment{}
	case KindTag:
		return &Tag{}
	case KindMetadata:
		return &Metadata{}
	case KindCollaborator:
		return &Collaborator{}
	case KindSharelink:
		return &Sharelink{}
	}
	return &Entity{}
}
