package labstep

import (
	"context"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Organization owns workspaces and manages user seats.
type Organization struct {
	Entity
}

// OrganizationUser is a user's seat in an organization.
type OrganizationUser struct {
	Entity
	User *UserSummary `json:"user"`
	Type string       `json:"type"`
}

// GetOrganization fetches an organization by id.
func (c *Client) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	return getEntity[Organization](ctx, c, KindOrganization, idKey(id))
}

// Edit renames the organization.
func (o *Organization) Edit(ctx context.Context, name optional.Value[string]) error {
	f := optional.Fields{}
	f.Put("name", name)
	return editEntity(ctx, &o.Entity, f)
}

// Workspaces lists the organization's workspaces.
func (o *Organization) Workspaces(ctx context.Context, count int) ([]*Workspace, error) {
	if o.client == nil {
		return nil, errUnbound
	}
	return getEntities[Workspace](ctx, o.client, KindWorkspace, ListOptions{
		Count:   count,
		Filters: map[string]interface{}{"organization_id": o.ID},
	})
}

// Users lists the organization's seats.
func (o *Organization) Users(ctx context.Context, count int) ([]*OrganizationUser, error) {
	if o.client == nil {
		return nil, errUnbound
	}
	return getEntities[OrganizationUser](ctx, o.client, KindOrganizationUser, ListOptions{
		Count:   count,
		Filters: map[string]interface{}{"organization_id": o.ID},
	})
}
