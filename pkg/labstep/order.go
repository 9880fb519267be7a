package labstep

import (
	"context"
	"fmt"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Order request states.
const (
	OrderNew       = "new"
	OrderApproved  = "approved"
	OrderOrdered   = "ordered"
	OrderBackOrder = "back_order"
	OrderReceived  = "received"
	OrderCancelled = "cancelled"
)

// OrderRequest asks for more of a resource.
type OrderRequest struct {
	Entity
	Threads
	Status        string   `json:"status"`
	Quantity      int      `json:"quantity"`
	Price         *float64 `json:"price"`
	Currency      string   `json:"currency"`
	ResourceRef   *Summary `json:"resource"`
	PurchaseOrder *Summary `json:"purchase_order"`
}

// OrderRequestEdit changes order request fields. Unset fields are kept.
type OrderRequestEdit struct {
	Status   optional.Value[string]
	Quantity optional.Value[int]
	Price    optional.Value[float64]
	Currency optional.Value[string]
}

// GetOrderRequest fetches an order request by id.
func (c *Client) GetOrderRequest(ctx context.Context, id int64) (*OrderRequest, error) {
	return getEntity[OrderRequest](ctx, c, KindOrderRequest, idKey(id))
}

// GetOrderRequests lists order requests in the active workspace.
func (c *Client) GetOrderRequests(ctx context.Context, opts ListOptions) ([]*OrderRequest, error) {
	return getEntities[OrderRequest](ctx, c, KindOrderRequest, opts)
}

// NewOrderRequest requests quantity units of a resource.
func (c *Client) NewOrderRequest(ctx context.Context, resourceID int64, quantity int) (*OrderRequest, error) {
	if resourceID == 0 || quantity < 1 {
		return nil, fmt.Errorf("%w: order request needs a resource and a positive quantity", ErrValidation)
	}
	return newEntity[OrderRequest](ctx, c, KindOrderRequest, optional.Fields{
		"resource_id": resourceID,
		"quantity":    quantity,
	})
}

func (o *OrderRequest) Comments() *Comments       { return newComments(&o.Entity, o.Thread) }
func (o *OrderRequest) Tags() *Tags               { return newTags(&o.Entity) }
func (o *OrderRequest) Sharing() *Sharing         { return newSharing(&o.Entity) }
func (o *OrderRequest) Metadata() *MetadataFields { return newMetadataFields(&o.Entity, o.MetadataThread) }

// Edit updates the order request.
func (o *OrderRequest) Edit(ctx context.Context, edit OrderRequestEdit) error {
	f := optional.Fields{}
	f.Put("status", edit.Status).
		Put("quantity", edit.Quantity).
		Put("price", edit.Price).
		Put("currency", edit.Currency)
	return editEntity(ctx, &o.Entity, f)
}

// Resource fetches the requested resource.
func (o *OrderRequest) Resource(ctx context.Context) (*Resource, error) {
	if o.client == nil {
		return nil, errUnbound
	}
	if o.ResourceRef == nil {
		return nil, nil
	}
	return o.client.GetResource(ctx, o.ResourceRef.ID)
}

// PurchaseOrder groups order requests placed with one supplier.
type PurchaseOrder struct {
	Entity
	Threads
	Status         string   `json:"status"`
	Currency       string   `json:"currency"`
	HandlingAmount *float64 `json:"handling_amount"`
	DiscountAmount *float64 `json:"discount_amount"`
}

// PurchaseOrderEdit changes purchase order fields. Unset fields are kept.
type PurchaseOrderEdit struct {
	Name     optional.Value[string]
	Status   optional.Value[string]
	Currency optional.Value[string]
	Handling optional.Value[float64]
	Discount optional.Value[float64]
}

// GetPurchaseOrder fetches a purchase order by id.
func (c *Client) GetPurchaseOrder(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return getEntity[PurchaseOrder](ctx, c, KindPurchaseOrder, idKey(id))
}

// GetPurchaseOrders lists purchase orders in the active workspace.
func (c *Client) GetPurchaseOrders(ctx context.Context, opts ListOptions) ([]*PurchaseOrder, error) {
	return getEntities[PurchaseOrder](ctx, c, KindPurchaseOrder, opts)
}

// NewPurchaseOrder creates a purchase order in the active workspace.
func (c *Client) NewPurchaseOrder(ctx context.Context, name string) (*PurchaseOrder, error) {
	return newEntity[PurchaseOrder](ctx, c, KindPurchaseOrder, optional.Fields{"name": name})
}

func (p *PurchaseOrder) Comments() *Comments { return newComments(&p.Entity, p.Thread) }
func (p *PurchaseOrder) Sharing() *Sharing   { return newSharing(&p.Entity) }

// Edit updates the purchase order.
func (p *PurchaseOrder) Edit(ctx context.Context, edit PurchaseOrderEdit) error {
	f := optional.Fields{}
	f.Put("name", edit.Name).
		Put("status", edit.Status).
		Put("currency", edit.Currency).
		Put("handling_amount", edit.Handling).
		Put("discount_amount", edit.Discount)
	return editEntity(ctx, &p.Entity, f)
}

// AddOrderRequests attaches order requests to the purchase order. Each
// request is updated in place.
func (p *PurchaseOrder) AddOrderRequests(ctx context.Context, requests ...*OrderRequest) error {
	for _, o := range requests {
		if err := editEntity(ctx, &o.Entity, optional.Fields{"purchase_order_id": p.ID}); err != nil {
			return fmt.Errorf("failed to add order request %d: %w", o.ID, err)
		}
	}
	return nil
}

// OrderRequests lists the requests attached to the purchase order.
func (p *PurchaseOrder) OrderRequests(ctx context.Context, count int) ([]*OrderRequest, error) {
	if p.client == nil {
		return nil, errUnbound
	}
	return getEntities[OrderRequest](ctx, p.client, KindOrderRequest, ListOptions{
		Count:   count,
		Filters: map[string]interface{}{"purchase_order_id": p.ID},
	})
}
