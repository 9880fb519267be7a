package labstep

import (
	"context"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Item availability states.
const (
	ItemAvailable   = "available"
	ItemUnavailable = "unavailable"
)

// ResourceItem is a physical instance of a resource.
type ResourceItem struct {
	Entity
	Threads
	Amount       string   `json:"amount"`
	Unit         string   `json:"unit"`
	Availability string   `json:"status"`
	Location     *Summary `json:"resource_location"`
	ResourceRef  *Summary `json:"resource"`
}

// ResourceItemInput describes a new item. Unset fields take server
// defaults.
type ResourceItemInput struct {
	Name         optional.Value[string]
	Amount       optional.Value[string]
	Unit         optional.Value[string]
	Availability optional.Value[string]
	LocationGUID optional.Value[string]
}

func (in ResourceItemInput) fields() optional.Fields {
	f := optional.Fields{}
	f.Put("name", in.Name).
		Put("amount", in.Amount).
		Put("unit", in.Unit).
		Put("status", in.Availability).
		Put("resource_location_guid", in.LocationGUID)
	return f
}

// ResourceItemEdit changes item fields. Unset fields are kept; a Null
// location removes the item from its location.
type ResourceItemEdit = ResourceItemInput

// GetResourceItem fetches a resource item by id.
func (c *Client) GetResourceItem(ctx context.Context, id int64) (*ResourceItem, error) {
	return getEntity[ResourceItem](ctx, c, KindResourceItem, idKey(id))
}

// GetResourceItems lists items in the active workspace.
func (c *Client) GetResourceItems(ctx context.Context, opts ListOptions) ([]*ResourceItem, error) {
	return getEntities[ResourceItem](ctx, c, KindResourceItem, opts)
}

func (i *ResourceItem) Comments() *Comments       { return newComments(&i.Entity, i.Thread) }
func (i *ResourceItem) Metadata() *MetadataFields { return newMetadataFields(&i.Entity, i.MetadataThread) }

// Edit updates the item.
func (i *ResourceItem) Edit(ctx context.Context, edit ResourceItemEdit) error {
	return editEntity(ctx, &i.Entity, edit.fields())
}

// Resource fetches the resource the item belongs to.
func (i *ResourceItem) Resource(ctx context.Context) (*Resource, error) {
	if i.client == nil {
		return nil, errUnbound
	}
	if i.ResourceRef == nil {
		return nil, nil
	}
	return i.client.GetResource(ctx, i.ResourceRef.ID)
}
