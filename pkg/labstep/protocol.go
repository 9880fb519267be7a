package labstep

import (
	"context"
	"fmt"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Protocol is a protocol collection; its body lives on the latest version.
type Protocol struct {
	Entity
	Threads
	LastVersion *RichText `json:"last_version"`
}

// ProtocolEdit changes protocol fields. Unset fields are kept.
type ProtocolEdit struct {
	Name optional.Value[string]
	Body optional.Value[interface{}]
}

// GetProtocol fetches a protocol by id.
func (c *Client) GetProtocol(ctx context.Context, id int64) (*Protocol, error) {
	return getEntity[Protocol](ctx, c, KindProtocol, idKey(id))
}

// GetProtocols lists protocols in the active workspace.
func (c *Client) GetProtocols(ctx context.Context, opts ListOptions) ([]*Protocol, error) {
	return getEntities[Protocol](ctx, c, KindProtocol, opts)
}

// NewProtocol creates a protocol in the active workspace.
func (c *Client) NewProtocol(ctx context.Context, name string) (*Protocol, error) {
	return newEntity[Protocol](ctx, c, KindProtocol, optional.Fields{"name": name})
}

func (p *Protocol) Comments() *Comments           { return newComments(&p.Entity, p.Thread) }
func (p *Protocol) Tags() *Tags                   { return newTags(&p.Entity) }
func (p *Protocol) Sharing() *Sharing             { return newSharing(&p.Entity) }
func (p *Protocol) Collaborators() *Collaborators { return newCollaborators(&p.Entity) }

func (p *Protocol) document() interface{} { return p.LastVersion.state() }

// Edit updates the protocol.
func (p *Protocol) Edit(ctx context.Context, edit ProtocolEdit) error {
	f := optional.Fields{}
	f.Put("name", edit.Name)
	if len(f) > 0 {
		if err := editEntity(ctx, &p.Entity, f); err != nil {
			return err
		}
	}
	if body, ok := edit.Body.Get(); ok {
		return p.SetBody(ctx, body)
	}
	return nil
}

// Body returns the latest version's document as of the last fetch.
func (p *Protocol) Body() interface{} {
	return p.document()
}

// SetBody replaces the latest version's document and refetches.
func (p *Protocol) SetBody(ctx context.Context, state interface{}) error {
	if p.client == nil {
		return errUnbound
	}
	if p.LastVersion == nil || p.LastVersion.ID == 0 {
		return fmt.Errorf("protocol %d has no version", p.ID)
	}
	if _, err := p.client.edit(ctx, KindProtocolVersion, idKey(p.LastVersion.ID), optional.Fields{"state": state}); err != nil {
		return err
	}
	return p.Update(ctx)
}
