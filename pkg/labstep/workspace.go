package labstep

import (
	"context"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Workspace is a group of users sharing entities. It is the "group"
// entity of the API.
type Workspace struct {
	Entity
	Description  string   `json:"description"`
	Organization *Summary `json:"organization"`
}

// WorkspaceEdit changes workspace fields. Unset fields are kept.
type WorkspaceEdit struct {
	Name        optional.Value[string]
	Description optional.Value[string]
}

// GetWorkspace fetches a workspace by id.
func (c *Client) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	return getEntity[Workspace](ctx, c, KindWorkspace, idKey(id))
}

// GetWorkspaces lists the workspaces of the session user.
func (c *Client) GetWorkspaces(ctx context.Context, opts ListOptions) ([]*Workspace, error) {
	if c.user != nil {
		opts.Filters = withFilter(opts.Filters, "user_id", c.user.ID)
	}
	return getEntities[Workspace](ctx, c, KindWorkspace, opts)
}

// NewWorkspace creates a workspace owned by the session user.
func (c *Client) NewWorkspace(ctx context.Context, name string) (*Workspace, error) {
	if err := validation.Validate(name, validation.Required.Error("workspace name is required")); err != nil {
		return nil, validationError(err)
	}
	return newEntity[Workspace](ctx, c, KindWorkspace, optional.Fields{"name": name})
}

// Edit updates the workspace.
func (w *Workspace) Edit(ctx context.Context, edit WorkspaceEdit) error {
	f := optional.Fields{}
	f.Put("name", edit.Name).Put("description", edit.Description)
	return editEntity(ctx, &w.Entity, f)
}

// Activate makes w the client's active workspace.
func (w *Workspace) Activate() {
	if w.client != nil {
		w.client.SetWorkspace(w.ID)
	}
}

// Sharelink returns the workspace invite link.
func (w *Workspace) Sharelink(ctx context.Context) (*Sharelink, error) {
	return sharelinkFor(ctx, &w.Entity)
}

// WorkspaceMember is a user's membership of a workspace.
type WorkspaceMember struct {
	Entity
	User       *UserSummary `json:"user"`
	Workspace  *Summary     `json:"group"`
	Permission string       `json:"type"`
}

// Members lists the users of the workspace.
func (w *Workspace) Members(ctx context.Context, count int) ([]*WorkspaceMember, error) {
	if w.client == nil {
		return nil, errUnbound
	}
	return getEntities[WorkspaceMember](ctx, w.client, KindWorkspaceMember, ListOptions{
		Count:   count,
		Filters: map[string]interface{}{"group_id": w.ID},
	})
}

// AddMember adds userID with the given permission ("view", "edit" or
// "owner").
func (w *Workspace) AddMember(ctx context.Context, userID int64, permission string) (*WorkspaceMember, error) {
	if w.client == nil {
		return nil, errUnbound
	}
	err := validation.Errors{
		"user":       validation.Validate(userID, validation.Required),
		"permission": validation.Validate(permission, validation.In(PermissionView, PermissionEdit, "owner")),
	}.Filter()
	if err != nil {
		return nil, validationError(err)
	}
	fields := optional.Fields{"group_id": w.ID, "user_id": userID}
	if permission != "" {
		fields["type"] = permission
	}
	return newEntity[WorkspaceMember](ctx, w.client, KindWorkspaceMember, fields)
}

// SetPermission changes the member's permission.
func (m *WorkspaceMember) SetPermission(ctx context.Context, permission string) error {
	if err := validation.Validate(permission, validation.Required, validation.In(PermissionView, PermissionEdit, "owner")); err != nil {
		return validationError(err)
	}
	return editEntity(ctx, &m.Entity, optional.Fields{"type": permission})
}

// Remove takes the user out of the workspace.
func (m *WorkspaceMember) Remove(ctx context.Context) error {
	if m.client == nil {
		return errUnbound
	}
	if err := m.client.call(ctx, http.MethodDelete, entityPath(KindWorkspaceMember, m.Key()), nil, nil); err != nil {
		return fmt.Errorf("failed to remove workspace member: %w", err)
	}
	return nil
}
