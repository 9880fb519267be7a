package labstep

import (
	"context"
)

// User is a Labstep account.
type User struct {
	Entity
	Username  string   `json:"username"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	APIKey    string   `json:"api_key"`
	Group     *Summary `json:"group"`
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id int64) (*User, error) {
	return getEntity[User](ctx, c, KindUser, idKey(id))
}

// Workspaces lists the workspaces the user belongs to.
func (u *User) Workspaces(ctx context.Context, count int) ([]*Workspace, error) {
	if u.client == nil {
		return nil, errUnbound
	}
	return getEntities[Workspace](ctx, u.client, KindWorkspace, ListOptions{
		Count:   count,
		Filters: map[string]interface{}{"user_id": u.ID},
	})
}
