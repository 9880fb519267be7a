package labstep

import (
	"context"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Permission levels accepted by the ACL endpoint.
const (
	PermissionView = "view"
	PermissionEdit = "edit"
)

var permissionRule = validation.In(PermissionView, PermissionEdit).Error("must be view or edit")

// Permission is a workspace's access to a shared entity.
type Permission struct {
	Workspace  *Summary `json:"group"`
	Permission string   `json:"permission"`

	sharing *Sharing
}

// Set changes the permission level.
func (p *Permission) Set(ctx context.Context, permission string) error {
	if err := p.sharing.ShareWith(ctx, p.Workspace.ID, permission); err != nil {
		return err
	}
	p.Permission = permission
	return nil
}

// Revoke removes the workspace's access.
func (p *Permission) Revoke(ctx context.Context) error {
	return p.sharing.Revoke(ctx, p.Workspace.ID)
}

// Sharelink grants access through a token instead of a per-workspace
// permission.
type Sharelink struct {
	Entity
	Token string `json:"token"`
	Type  string `json:"type"`
}

// URL returns the public link.
func (s *Sharelink) URL() string {
	return fmt.Sprintf("%s/sharelink/%s", s.client.config.WebAppURL, s.Token)
}

// Sharing manages access to one entity.
type Sharing struct {
	parent *Entity
}

func newSharing(parent *Entity) *Sharing {
	return &Sharing{parent: parent}
}

type aclRequest struct {
	Action      string `json:"action"`
	EntityClass string `json:"entity_class"`
	ID          string `json:"id"`
	GroupID     int64  `json:"group_id"`
	Permission  string `json:"permission,omitempty"`
}

func (s *Sharing) acl(ctx context.Context, action string, workspaceID int64, permission string) error {
	if s.parent.client == nil {
		return errUnbound
	}
	err := s.parent.client.call(ctx, http.MethodPost, genericPath+"/acl", aclRequest{
		Action:      action,
		EntityClass: s.parent.kind.EntityName(),
		ID:          s.parent.Key(),
		GroupID:     workspaceID,
		Permission:  permission,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to %s access for workspace %d: %w", action, workspaceID, err)
	}
	return nil
}

// ShareWith grants a workspace view or edit access.
func (s *Sharing) ShareWith(ctx context.Context, workspaceID int64, permission string) error {
	err := validation.Errors{
		"workspace":  validation.Validate(workspaceID, validation.Required),
		"permission": validation.Validate(permission, validation.Required, permissionRule),
	}.Filter()
	if err != nil {
		return validationError(err)
	}
	return s.acl(ctx, "grant", workspaceID, permission)
}

// Revoke removes a workspace's access.
func (s *Sharing) Revoke(ctx context.Context, workspaceID int64) error {
	if err := validation.Validate(workspaceID, validation.Required); err != nil {
		return validationError(err)
	}
	return s.acl(ctx, "revoke", workspaceID, "")
}

// Permissions lists the workspaces the entity is shared with.
func (s *Sharing) Permissions(ctx context.Context) ([]*Permission, error) {
	if s.parent.client == nil {
		return nil, errUnbound
	}
	var resp struct {
		Permissions []*Permission `json:"permissions"`
	}
	path := genericPath + "/acl/" + s.parent.kind.EntityName() + "/" + s.parent.Key()
	if err := s.parent.client.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get permissions: %w", err)
	}
	for _, p := range resp.Permissions {
		p.sharing = s
	}
	return resp.Permissions, nil
}

// TransferOwnership moves the entity to another workspace.
func (s *Sharing) TransferOwnership(ctx context.Context, workspaceID int64) error {
	if err := validation.Validate(workspaceID, validation.Required); err != nil {
		return validationError(err)
	}
	if s.parent.client == nil {
		return errUnbound
	}
	var raw map[string]interface{}
	path := entityPath(s.parent.kind, s.parent.Key(), "transfer-ownership")
	if err := s.parent.client.call(ctx, http.MethodPost, path, map[string]int64{"group_id": workspaceID}, &raw); err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	if len(raw) == 0 {
		return s.parent.Update(ctx)
	}
	return s.parent.client.bind(s.parent.self, s.parent.kind, raw)
}

// Sharelink creates or returns the entity's sharelink.
func (s *Sharing) Sharelink(ctx context.Context) (*Sharelink, error) {
	return sharelinkFor(ctx, s.parent)
}

func sharelinkFor(ctx context.Context, parent *Entity) (*Sharelink, error) {
	if parent.client == nil {
		return nil, errUnbound
	}
	return newEntity[Sharelink](ctx, parent.client, KindSharelink, optional.Fields{
		parent.kind.EntityName() + "_id": parent.ID,
	})
}
