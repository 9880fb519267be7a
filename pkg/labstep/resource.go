package labstep

import (
	"context"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Resource is an inventory resource such as a reagent or antibody.
type Resource struct {
	Entity
	Threads
	// Template is the resource's category.
	Template *Summary `json:"template"`
}

// ResourceEdit changes resource fields. Unset fields are kept; a Null
// category detaches the resource from its category.
type ResourceEdit struct {
	Name       optional.Value[string]
	CategoryID optional.Value[int64]
}

// GetResource fetches a resource by id.
func (c *Client) GetResource(ctx context.Context, id int64) (*Resource, error) {
	return getEntity[Resource](ctx, c, KindResource, idKey(id))
}

// GetResources lists resources in the active workspace.
func (c *Client) GetResources(ctx context.Context, opts ListOptions) ([]*Resource, error) {
	return getEntities[Resource](ctx, c, KindResource, opts)
}

// NewResource creates a resource in the active workspace.
func (c *Client) NewResource(ctx context.Context, name string, categoryID optional.Value[int64]) (*Resource, error) {
	f := optional.Fields{"name": name}
	f.Put("template_id", categoryID)
	return newEntity[Resource](ctx, c, KindResource, f)
}

func (r *Resource) Comments() *Comments       { return newComments(&r.Entity, r.Thread) }
func (r *Resource) Tags() *Tags               { return newTags(&r.Entity) }
func (r *Resource) Sharing() *Sharing         { return newSharing(&r.Entity) }
func (r *Resource) Metadata() *MetadataFields { return newMetadataFields(&r.Entity, r.MetadataThread) }

// Edit updates the resource.
func (r *Resource) Edit(ctx context.Context, edit ResourceEdit) error {
	f := optional.Fields{}
	f.Put("name", edit.Name).Put("template_id", edit.CategoryID)
	return editEntity(ctx, &r.Entity, f)
}

// Category fetches the resource's category, or returns nil when it has
// none.
func (r *Resource) Category(ctx context.Context) (*ResourceCategory, error) {
	if r.client == nil {
		return nil, errUnbound
	}
	if r.Template == nil || r.Template.ID == 0 {
		return nil, nil
	}
	return r.client.GetResourceCategory(ctx, r.Template.ID)
}

// NewItem creates an item (a physical instance) of the resource.
func (r *Resource) NewItem(ctx context.Context, in ResourceItemInput) (*ResourceItem, error) {
	if r.client == nil {
		return nil, errUnbound
	}
	f := in.fields()
	f["resource_id"] = r.ID
	return newEntity[ResourceItem](ctx, r.client, KindResourceItem, f)
}

// Items lists the resource's items.
func (r *Resource) Items(ctx context.Context, opts ListOptions) ([]*ResourceItem, error) {
	if r.client == nil {
		return nil, errUnbound
	}
	opts.Filters = withFilter(opts.Filters, "resource_id", r.ID)
	return getEntities[ResourceItem](ctx, r.client, KindResourceItem, opts)
}

// ResourceCategory is a resource template: default metadata and naming
// shared by the resources created from it.
type ResourceCategory struct {
	Entity
	Threads
}

// GetResourceCategory fetches a resource category by id.
func (c *Client) GetResourceCategory(ctx context.Context, id int64) (*ResourceCategory, error) {
	return getEntity[ResourceCategory](ctx, c, KindResourceCategory, idKey(id))
}

// GetResourceCategories lists resource categories in the active workspace.
func (c *Client) GetResourceCategories(ctx context.Context, opts ListOptions) ([]*ResourceCategory, error) {
	return getEntities[ResourceCategory](ctx, c, KindResourceCategory, opts)
}

// NewResourceCategory creates a resource category in the active workspace.
func (c *Client) NewResourceCategory(ctx context.Context, name string) (*ResourceCategory, error) {
	return newEntity[ResourceCategory](ctx, c, KindResourceCategory, optional.Fields{"name": name})
}

func (rc *ResourceCategory) Tags() *Tags       { return newTags(&rc.Entity) }
func (rc *ResourceCategory) Sharing() *Sharing { return newSharing(&rc.Entity) }
func (rc *ResourceCategory) Metadata() *MetadataFields {
	return newMetadataFields(&rc.Entity, rc.MetadataThread)
}

// Edit renames the category.
func (rc *ResourceCategory) Edit(ctx context.Context, name optional.Value[string]) error {
	f := optional.Fields{}
	f.Put("name", name)
	return editEntity(ctx, &rc.Entity, f)
}
