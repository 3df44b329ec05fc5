package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

func TestMatchesComponent(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		component   string
		want        bool
	}{
		{"exact title", "Data Table", "", "data table", true},
		{"title contains name", "Sortable Data Table", "", "Data Table", true},
		{"name contains title", "Table", "", "Data Table", true},
		{"keyword overlap", "Table for Data Grid", "", "DataGrid Table", true},
		{"single keyword only", "Pivot Table", "", "Data Table", false},
		{"short tokens ignored", "UI of DS", "", "UI DS Kit", false},
		{"short non-ascii tokens ignored", "Ün Öl Widget", "", "ün öl Slider", false},
		{"short non-ascii description word ignored", "Meter", "Öl readings", "Öl Gauge", false},
		{"description contains name", "Fancy widget", "Tooltip helpers for forms", "Tooltip", true},
		{"description first word in name", "Profile picture", "Avatar images with fallbacks", "User Avatar", true},
		{"unrelated", "Button", "Clickable actions", "Data Table", false},
		{"empty name", "Data Table", "", "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &models.ComponentRequest{Title: tt.title, Description: tt.description}
			assert.Equal(t, tt.want, matchesComponent(req, tt.component))
		})
	}
}

func TestOnComponentCreated_PicksHighestPriorityNewest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.seed(t, &models.ComponentRequest{
		ID: "high", Title: "Data Table Component", Status: models.StatusApproved,
		Priority: models.PriorityHigh, CreatedAt: baseTime.Add(-5 * time.Hour),
	})
	env.seed(t, &models.ComponentRequest{
		ID: "critical-old", Title: "Sortable Data Table", Status: models.StatusApproved,
		Priority: models.PriorityCritical, CreatedAt: baseTime.Add(-4 * time.Hour),
	})
	env.seed(t, &models.ComponentRequest{
		ID: "critical-new", Title: "Data Table", Status: models.StatusApproved,
		Priority: models.PriorityCritical, CreatedAt: baseTime.Add(-3 * time.Hour),
	})
	env.seed(t, &models.ComponentRequest{
		ID: "not-approved", Title: "Data Table Filters", Status: models.StatusUnderReview,
		Priority: models.PriorityCritical, CreatedAt: baseTime.Add(-time.Hour),
	})
	env.seed(t, &models.ComponentRequest{
		ID: "already-linked", Title: "Data Table", Status: models.StatusApproved, ComponentID: "other",
		Priority: models.PriorityCritical, CreatedAt: baseTime.Add(-time.Hour),
	})
	env.seed(t, &models.ComponentRequest{
		ID: "unrelated", Title: "Button Group", Description: "Grouped button actions",
		Status: models.StatusApproved, Priority: models.PriorityCritical, CreatedAt: baseTime,
	})

	linked, err := env.svc.OnComponentCreated(ctx, models.ComponentCreatedEvent{
		ComponentID:   "c1",
		ComponentName: "Data Table",
	})
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, "critical-new", linked.ID)

	stored := env.get(t, "critical-new")
	assert.Equal(t, "c1", stored.ComponentID)
	assert.Equal(t, models.StatusInProgress, stored.Status)

	for _, id := range []string{"high", "critical-old", "not-approved", "unrelated"} {
		assert.Empty(t, env.get(t, id).ComponentID, id)
	}
	assert.Equal(t, "other", env.get(t, "already-linked").ComponentID)
}

func TestOnComponentCreated_InProgressMatchCompletes(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Stepper", Status: models.StatusInProgress})

	linked, err := env.svc.OnComponentCreated(context.Background(), models.ComponentCreatedEvent{
		ComponentID:   "c9",
		ComponentName: "Stepper",
	})
	require.NoError(t, err)
	require.NotNil(t, linked)

	assert.Equal(t, models.StatusCompleted, linked.Status)
	history := env.history(t, "req-1")
	require.Len(t, history, 1)
	assert.Equal(t, systemUser, history[0].UserID)
}

func TestOnComponentCreated_ExplicitRequest(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &models.ComponentRequest{ID: "target", Title: "Anything", Status: models.StatusApproved})
	env.seed(t, &models.ComponentRequest{
		ID: "better-match", Title: "Carousel", Status: models.StatusApproved, Priority: models.PriorityCritical,
	})

	linked, err := env.svc.OnComponentCreated(context.Background(), models.ComponentCreatedEvent{
		ComponentID:     "c2",
		ComponentName:   "Carousel",
		LinkedRequestID: "target",
	})
	require.NoError(t, err)
	require.NotNil(t, linked)

	assert.Equal(t, "target", linked.ID)
	assert.Equal(t, models.StatusInProgress, linked.Status)
	assert.Equal(t, "c2", linked.ComponentID)
	assert.Empty(t, env.get(t, "better-match").ComponentID)
}

func TestOnComponentCreated_UnknownExplicitRequestFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Carousel", Status: models.StatusApproved})

	linked, err := env.svc.OnComponentCreated(context.Background(), models.ComponentCreatedEvent{
		ComponentID:     "c3",
		ComponentName:   "Carousel",
		LinkedRequestID: "missing",
	})
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, "req-1", linked.ID)
}

func TestOnComponentCreated_NoMatchIsSilent(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Carousel", Status: models.StatusApproved})

	linked, err := env.svc.OnComponentCreated(context.Background(), models.ComponentCreatedEvent{
		ComponentID:   "c4",
		ComponentName: "Breadcrumbs",
	})
	require.NoError(t, err)
	assert.Nil(t, linked)

	stored := env.get(t, "req-1")
	assert.Empty(t, stored.ComponentID)
	assert.Equal(t, models.StatusApproved, stored.Status)
}

func TestLinkToComponent(t *testing.T) {
	tests := []struct {
		status models.RequestStatus
		want   models.RequestStatus
	}{
		{models.StatusApproved, models.StatusApproved},
		{models.StatusInProgress, models.StatusCompleted},
		{models.StatusUnderReview, models.StatusUnderReview},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			env := newTestEnv(t)
			env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Tabs", Status: tt.status})

			linked, err := env.svc.LinkToComponent(context.Background(), "req-1", "c5")
			require.NoError(t, err)

			assert.Equal(t, "c5", linked.ComponentID)
			assert.Equal(t, tt.want, linked.Status)
			assert.Equal(t, tt.want, env.get(t, "req-1").Status)
		})
	}
}

func TestUnlinkFromComponent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Tabs", Status: models.StatusCompleted, ComponentID: "c6"})

	unlinked, err := env.svc.UnlinkFromComponent(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, unlinked.ComponentID)
	assert.Equal(t, models.StatusCompleted, unlinked.Status)
	assert.Empty(t, env.history(t, "req-1"))

	missing, err := env.svc.UnlinkFromComponent(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"ascii", "ui data-table", []string{"data", "table"}},
		{"two-rune non-ascii dropped", "ün grid öl", []string{"grid"}},
		{"three-rune non-ascii kept", "ünö öl", []string{"ünö"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keywords(tt.input))
		})
	}
}
