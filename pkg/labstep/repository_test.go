package labstep

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labstep/labstep-go/internal/fakelabstep"
	"github.com/labstep/labstep-go/pkg/optional"
)

func seedExperiments(t *testing.T, c *Client, srv *fakelabstep.Server, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		srv.Seed(string(KindExperiment), map[string]interface{}{
			"name":     fmt.Sprintf("Experiment %02d", i),
			"group_id": c.ActiveWorkspace(),
		})
	}
}

func TestGetEntities_Pagination(t *testing.T) {
	tests := []struct {
		name         string
		count        int
		wantItems    int
		wantRequests int
	}{
		{name: "fits in first page", count: 5, wantItems: 5, wantRequests: 1},
		{name: "spans pages", count: 15, wantItems: 15, wantRequests: 2},
		{name: "more than available", count: 100, wantItems: 25, wantRequests: 3},
		{name: "all", count: -1, wantItems: 25, wantRequests: 3},
		{name: "default count", count: 0, wantItems: 25, wantRequests: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			seedExperiments(t, c, srv, 25)
			srv.SetPageLimit(10)
			srv.ResetRequests()

			got, err := c.GetExperiments(context.Background(), ListOptions{Count: tt.count})
			require.NoError(t, err)
			require.Len(t, got, tt.wantItems)
			assert.Equal(t, tt.wantRequests, srv.CountRequests(http.MethodGet, "/api/generic/experiment_workflow"))

			for i, e := range got {
				assert.Equal(t, fmt.Sprintf("Experiment %02d", i), e.Name)
			}
		})
	}
}

func TestGetEntities_EmptyResult(t *testing.T) {
	c, srv := newTestClient(t)

	got, err := c.GetDevices(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, "/api/generic/device"))
}

func TestGetEntities_QueryParameters(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetExperiments(ctx, ListOptions{Count: 7, SearchQuery: "PCR", TagID: 12})
	require.NoError(t, err)

	req, ok := srv.LastRequest(http.MethodGet, "/api/generic/experiment_workflow")
	require.True(t, ok)
	assert.Equal(t, "1", req.Query.Get("search"))
	assert.Equal(t, "-1", req.Query.Get("cursor"))
	assert.Equal(t, "7", req.Query.Get("count"))
	assert.Equal(t, "PCR", req.Query.Get("search_query"))
	assert.Equal(t, "12", req.Query.Get("tag_id"))
	assert.Equal(t, "false", req.Query.Get("is_deleted"))
	assert.Equal(t, fmt.Sprint(c.ActiveWorkspace()), req.Query.Get("group_id"))

	_, err = c.GetExperiments(ctx, ListOptions{Count: 5000, IncludeDeleted: true})
	require.NoError(t, err)
	req, _ = srv.LastRequest(http.MethodGet, "/api/generic/experiment_workflow")
	assert.Equal(t, "1000", req.Query.Get("count"))
	assert.False(t, req.Query.Has("is_deleted"))
}

func TestGetEntities_SearchAndDeleted(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	a, err := c.NewExperiment(ctx, "PCR run")
	require.NoError(t, err)
	_, err = c.NewExperiment(ctx, "Western blot")
	require.NoError(t, err)

	got, err := c.GetExperiments(ctx, ListOptions{SearchQuery: "pcr"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	require.NoError(t, a.Delete(ctx))
	assert.True(t, a.IsDeleted())

	got, err = c.GetExperiments(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = c.GetExperiments(ctx, ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, a.Restore(ctx))
	assert.False(t, a.IsDeleted())
}

func TestEdit_OmitsUnsetAndSendsNull(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	exp, err := c.NewExperiment(ctx, "Run")
	require.NoError(t, err)

	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, exp.Edit(ctx, ExperimentEdit{StartedAt: optional.Set(started)}))
	require.NotNil(t, exp.StartedAt)
	assert.True(t, started.Equal(*exp.StartedAt))
	assert.Equal(t, "Run", exp.Name)

	req, ok := srv.LastRequest(http.MethodPut, "/api/generic/experiment_workflow/")
	require.True(t, ok)
	assert.Len(t, req.Body, 1)
	assert.Contains(t, req.Body, "started_at")

	require.NoError(t, exp.Edit(ctx, ExperimentEdit{Name: optional.Set("Renamed"), StartedAt: optional.Null[time.Time]()}))
	req, _ = srv.LastRequest(http.MethodPut, "/api/generic/experiment_workflow/")
	assert.Len(t, req.Body, 2)
	v, ok := req.Body["started_at"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Nil(t, exp.StartedAt)
	assert.Equal(t, "Renamed", exp.Name)
}

func TestEntity_UpdateReplacesFields(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	d, err := c.NewDevice(ctx, "Centrifuge")
	require.NoError(t, err)

	other, err := c.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, other.Edit(ctx, optional.Set("Centrifuge 2")))

	assert.Equal(t, "Centrifuge", d.Name)
	require.NoError(t, d.Update(ctx))
	assert.Equal(t, "Centrifuge 2", d.Name)
	assert.Equal(t, srv.Get("device", d.Key())["name"], d.Name)
}

func TestEntity_ExtraFields(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	exp, err := c.NewExperiment(ctx, "Run")
	require.NoError(t, err)

	e, err := c.GetExperiment(ctx, exp.ID)
	require.NoError(t, err)
	assert.Contains(t, e.Extra, "owner")
	assert.NotContains(t, e.Extra, "name")
	assert.Equal(t, e.Raw()["name"], "Run")
}

func TestEntity_UnboundOperations(t *testing.T) {
	var e Experiment
	assert.ErrorIs(t, e.Update(context.Background()), errUnbound)
	assert.ErrorIs(t, e.Delete(context.Background()), errUnbound)
	_, err := e.Comments().List(context.Background(), 1)
	assert.ErrorIs(t, err, errUnbound)
}

func TestGetEntity_NotFound(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.GetExperiment(context.Background(), 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetEntity_RetriesUnavailable(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	exp, err := c.NewExperiment(ctx, "Run")
	require.NoError(t, err)

	srv.FailNext(http.MethodGet, "/api/generic/experiment_workflow/", http.StatusServiceUnavailable, 2)
	srv.ResetRequests()
	got, err := c.GetExperiment(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, got.ID)
	assert.Equal(t, 3, srv.CountRequests(http.MethodGet, "/api/generic/experiment_workflow/"))
}

func TestGetEntity_RetriesDisabled(t *testing.T) {
	srv := fakelabstep.New()
	defer srv.Close()
	key, _, _ := srv.AddUser("alice", "secret")

	cfg := testConfig(srv)
	cfg.MaxRetries = 0
	c, err := Authenticate(context.Background(), cfg, key)
	require.NoError(t, err)

	ctx := context.Background()
	exp, err := c.NewExperiment(ctx, "Run")
	require.NoError(t, err)

	srv.FailNext(http.MethodGet, "/api/generic/experiment_workflow/", http.StatusServiceUnavailable, 5)
	srv.ResetRequests()
	_, err = c.GetExperiment(ctx, exp.ID)
	require.Error(t, err)
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet, "/api/generic/experiment_workflow/"))
}
