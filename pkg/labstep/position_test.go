package labstep

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labstep/labstep-go/pkg/entityid"
	"github.com/labstep/labstep-go/pkg/optional"
)

func TestPosition_Validate(t *testing.T) {
	tests := []struct {
		name      string
		pos       Position
		wantError bool
	}{
		{name: "origin", pos: Position{X: 0, Y: 0, W: 1, H: 1}},
		{name: "wide", pos: Position{X: 4, Y: 2, W: 3, H: 1}},
		{name: "negative x", pos: Position{X: -1, Y: 0, W: 1, H: 1}, wantError: true},
		{name: "negative y", pos: Position{X: 0, Y: -2, W: 1, H: 1}, wantError: true},
		{name: "zero width", pos: Position{X: 0, Y: 0, W: 0, H: 1}, wantError: true},
		{name: "zero height", pos: Position{X: 0, Y: 0, W: 1, H: 0}, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantError {
				assert.Error(t, tt.pos.Validate())
			} else {
				assert.NoError(t, tt.pos.Validate())
			}
		})
	}
}

func TestPositionMap_SetGrowsGrid(t *testing.T) {
	existing := entityid.NewRef("resource_item", "1")
	added := entityid.NewRef("resource_item", "2")

	m := NewPositionMap(DefaultGridSize, DefaultGridSize)
	m.Set(existing, Position{X: 1, Y: 1, W: 1, H: 1})
	m.Set(added, Position{X: 12, Y: 3, W: 1, H: 1})

	assert.GreaterOrEqual(t, m.ColumnCount, 13)
	assert.Equal(t, DefaultGridSize, m.RowCount)

	p, ok := m.Get(existing)
	require.True(t, ok)
	assert.Equal(t, Position{X: 1, Y: 1, W: 1, H: 1}, p)

	p, ok = m.Get(added)
	require.True(t, ok)
	assert.Equal(t, 12, p.X)

	m.Set(added, Position{X: 0, Y: 15, W: 1, H: 1})
	assert.Equal(t, 16, m.RowCount)
	assert.Equal(t, 13, m.ColumnCount)

	m.Remove(added)
	_, ok = m.Get(added)
	assert.False(t, ok)
	assert.Equal(t, 16, m.RowCount)
}

func TestPositionMap_SetFitsRectangle(t *testing.T) {
	tests := []struct {
		name        string
		pos         Position
		wantRows    int
		wantColumns int
	}{
		{name: "inside", pos: Position{X: 2, Y: 2, W: 3, H: 2}, wantRows: 10, wantColumns: 10},
		{name: "touching the edge", pos: Position{X: 7, Y: 8, W: 3, H: 2}, wantRows: 10, wantColumns: 10},
		{name: "wide item at the corner", pos: Position{X: 9, Y: 9, W: 3, H: 2}, wantRows: 11, wantColumns: 12},
		{name: "tall item on the last row", pos: Position{X: 0, Y: 9, W: 1, H: 4}, wantRows: 13, wantColumns: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPositionMap(DefaultGridSize, DefaultGridSize)
			m.Set(entityid.NewRef("resource_item", "1"), tt.pos)
			assert.Equal(t, tt.wantRows, m.RowCount)
			assert.Equal(t, tt.wantColumns, m.ColumnCount)
		})
	}
}

func TestPositionMap_NilDefaults(t *testing.T) {
	var m *PositionMap
	_, ok := m.Get(entityid.NewRef("resource_item", "1"))
	assert.False(t, ok)

	c := m.clone()
	assert.Equal(t, DefaultGridSize, c.RowCount)
	assert.Equal(t, DefaultGridSize, c.ColumnCount)
	assert.Empty(t, c.Data)
}

func TestResourceLocation_SetPosition(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	freezer, err := c.NewResourceLocation(ctx, "Freezer -80")
	require.NoError(t, err)
	require.False(t, freezer.GUID.IsZero())
	assert.Equal(t, freezer.GUID.String(), freezer.Key())

	res, err := c.NewResource(ctx, "Competent cells", optional.Value[int64]{})
	require.NoError(t, err)
	first, err := res.NewItem(ctx, ResourceItemInput{Name: optional.Set("Box 1"), LocationGUID: optional.Set(freezer.Key())})
	require.NoError(t, err)
	second, err := res.NewItem(ctx, ResourceItemInput{Name: optional.Set("Box 2")})
	require.NoError(t, err)

	require.NotNil(t, first.Location)
	assert.Equal(t, freezer.GUID, first.Location.GUID)

	require.NoError(t, freezer.SetPosition(ctx, first, 0, 0, 1, 1))
	require.NoError(t, freezer.SetPosition(ctx, second, 12, 3, 1, 1))

	fetched, err := c.GetResourceLocation(ctx, freezer.GUID)
	require.NoError(t, err)
	grid := fetched.Positions()
	assert.GreaterOrEqual(t, grid.ColumnCount, 13)
	assert.Equal(t, DefaultGridSize, grid.RowCount)

	p, ok := grid.Get(first.Ref())
	require.True(t, ok)
	assert.Equal(t, Position{X: 0, Y: 0, W: 1, H: 1}, p)
	p, ok = grid.Get(second.Ref())
	require.True(t, ok)
	assert.Equal(t, Position{X: 12, Y: 3, W: 1, H: 1}, p)

	req, ok := srv.LastRequest(http.MethodPut, "/api/generic/resource_location/")
	require.True(t, ok)
	data := req.Body["map_data"].(map[string]interface{})["data"].(map[string]interface{})
	assert.Contains(t, data, "resource_item-"+first.Key())

	items, err := freezer.Items(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)
}

func TestResourceLocation_SetPositionValidates(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	shelf, err := c.NewResourceLocation(ctx, "Shelf")
	require.NoError(t, err)
	srv.ResetRequests()

	err = shelf.SetPosition(ctx, shelf, -1, 0, 1, 1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, srv.CountRequests("", "/"))
}

func TestResourceLocation_Children(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	room, err := c.NewResourceLocation(ctx, "Cold room")
	require.NoError(t, err)
	rack, err := room.AddChild(ctx, "Rack A")
	require.NoError(t, err)
	require.NotNil(t, rack.Outer)
	assert.Equal(t, room.GUID, rack.Outer.GUID)

	children, err := room.Children(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Rack A", children[0].Name)
}
