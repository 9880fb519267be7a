package labstep

import (
	"context"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Device is a piece of lab equipment.
type Device struct {
	Entity
	Threads
}

// GetDevice fetches a device by id.
func (c *Client) GetDevice(ctx context.Context, id int64) (*Device, error) {
	return getEntity[Device](ctx, c, KindDevice, idKey(id))
}

// GetDevices lists devices in the active workspace.
func (c *Client) GetDevices(ctx context.Context, opts ListOptions) ([]*Device, error) {
	return getEntities[Device](ctx, c, KindDevice, opts)
}

// NewDevice creates a device in the active workspace.
func (c *Client) NewDevice(ctx context.Context, name string) (*Device, error) {
	return newEntity[Device](ctx, c, KindDevice, optional.Fields{"name": name})
}

func (d *Device) Comments() *Comments       { return newComments(&d.Entity, d.Thread) }
func (d *Device) Tags() *Tags               { return newTags(&d.Entity) }
func (d *Device) Sharing() *Sharing         { return newSharing(&d.Entity) }
func (d *Device) Metadata() *MetadataFields { return newMetadataFields(&d.Entity, d.MetadataThread) }

// Edit renames the device.
func (d *Device) Edit(ctx context.Context, name optional.Value[string]) error {
	f := optional.Fields{}
	f.Put("name", name)
	return editEntity(ctx, &d.Entity, f)
}
