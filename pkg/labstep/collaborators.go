package labstep

import (
	"context"
	"fmt"

	"github.com/labstep/labstep-go/pkg/optional"
)

// Collaborator links a user to an entity.
type Collaborator struct {
	Entity
	User       *UserSummary `json:"user"`
	IsAssigned bool         `json:"is_assigned"`
}

// Unassign removes the user from the entity's collaborators.
func (c *Collaborator) Unassign(ctx context.Context) error {
	return editEntity(ctx, &c.Entity, optional.Fields{"is_assigned": false})
}

// Collaborators assigns users to one entity.
type Collaborators struct {
	parent *Entity
}

func newCollaborators(parent *Entity) *Collaborators {
	return &Collaborators{parent: parent}
}

func (cs *Collaborators) field() string {
	return cs.parent.kind.EntityName() + "_id"
}

// Assign adds userID as a collaborator.
func (cs *Collaborators) Assign(ctx context.Context, userID int64) (*Collaborator, error) {
	if cs.parent.client == nil {
		return nil, errUnbound
	}
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return newEntity[Collaborator](ctx, cs.parent.client, KindCollaborator, optional.Fields{
		cs.field():    cs.parent.ID,
		"user_id":     userID,
		"is_assigned": true,
	})
}

// List returns the users currently assigned.
func (cs *Collaborators) List(ctx context.Context) ([]*Collaborator, error) {
	if cs.parent.client == nil {
		return nil, errUnbound
	}
	return getEntities[Collaborator](ctx, cs.parent.client, KindCollaborator, ListOptions{
		Count: -1,
		Filters: map[string]interface{}{
			cs.field():    cs.parent.ID,
			"is_assigned": true,
		},
	})
}
