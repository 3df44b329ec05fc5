package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

func TestAllowedTransitions_Table(t *testing.T) {
	tests := []struct {
		from models.RequestStatus
		want []models.RequestStatus
	}{
		{models.StatusSubmitted, []models.RequestStatus{models.StatusUnderReview, models.StatusRejected}},
		{models.StatusUnderReview, []models.RequestStatus{models.StatusApproved, models.StatusRejected, models.StatusNeedsMoreInfo}},
		{models.StatusNeedsMoreInfo, []models.RequestStatus{models.StatusUnderReview, models.StatusRejected}},
		{models.StatusApproved, []models.RequestStatus{models.StatusInProgress, models.StatusRejected}},
		{models.StatusInProgress, []models.RequestStatus{models.StatusCompleted, models.StatusRejected}},
		{models.StatusCompleted, []models.RequestStatus{models.StatusReleased}},
		{models.StatusReleased, []models.RequestStatus{}},
		{models.StatusRejected, []models.RequestStatus{}},
	}

	require.Len(t, tests, len(models.AllStatuses))
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, AllowedTransitions(tt.from))
		})
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	allowed := AllowedTransitions(models.StatusSubmitted)
	allowed[0] = models.StatusReleased

	assert.Equal(t, models.StatusUnderReview, AllowedTransitions(models.StatusSubmitted)[0])
}

func TestTransitionStatus_EveryEdge(t *testing.T) {
	ctx := context.Background()

	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			from, to := from, to
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				env := newTestEnv(t)
				req := env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Tabs", Status: from})

				updated, err := env.svc.TransitionStatus(ctx, req.ID, to, "bob", "moving on")

				if CanTransition(from, to) {
					require.NoError(t, err)
					require.NotNil(t, updated)
					assert.Equal(t, to, updated.Status)
					assert.True(t, updated.UpdatedAt.After(req.UpdatedAt))

					history := env.history(t, req.ID)
					require.Len(t, history, 1)
					assert.Equal(t, to, history[0].Status)
					assert.Equal(t, "bob", history[0].UserID)
					assert.Equal(t, "moving on", history[0].Comment)
					return
				}

				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				var transitionErr *InvalidTransitionError
				require.True(t, errors.As(err, &transitionErr))
				assert.Equal(t, from, transitionErr.From)
				assert.Equal(t, to, transitionErr.To)
				assert.Contains(t, err.Error(), string(from))
				assert.Nil(t, updated)

				assert.Equal(t, from, env.get(t, req.ID).Status)
				assert.Empty(t, env.history(t, req.ID))
			})
		}
	}
}

func TestTransitionStatus_UnknownStatusRejected(t *testing.T) {
	env := newTestEnv(t)
	req := env.create(t, "Tabs")

	_, err := env.svc.TransitionStatus(context.Background(), req.ID, "archived", "bob", "")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusSubmitted, env.get(t, req.ID).Status)
}

func TestTransitionStatus_UnknownRequest(t *testing.T) {
	env := newTestEnv(t)

	req, err := env.svc.TransitionStatus(context.Background(), "missing", models.StatusUnderReview, "bob", "")

	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestTransitionStatus_TerminalStatesStayPut(t *testing.T) {
	ctx := context.Background()

	for _, terminal := range []models.RequestStatus{models.StatusReleased, models.StatusRejected} {
		t.Run(string(terminal), func(t *testing.T) {
			env := newTestEnv(t)
			req := env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Tabs", Status: terminal})

			for _, to := range models.AllStatuses {
				_, err := env.svc.TransitionStatus(ctx, req.ID, to, "bob", "")
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
			assert.Equal(t, terminal, env.get(t, req.ID).Status)
		})
	}
}

func TestTransitionStatus_RejectedClearsApprovalFlags(t *testing.T) {
	env := newTestEnv(t)
	req := env.seed(t, &models.ComponentRequest{
		ID:     "req-1",
		Title:  "Tabs",
		Status: models.StatusUnderReview,
		Metadata: models.RequestMetadata{
			DesignApproved:    true,
			TechnicalApproved: true,
		},
	})

	updated, err := env.svc.TransitionStatus(context.Background(), req.ID, models.StatusRejected, "bob", "out of scope")
	require.NoError(t, err)

	assert.False(t, updated.Metadata.DesignApproved)
	assert.False(t, updated.Metadata.TechnicalApproved)
	assert.False(t, env.get(t, req.ID).Metadata.DesignApproved)
}

func TestTransitionStatus_ApprovalCreatesRoadmapItemOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.seed(t, &models.ComponentRequest{
		ID:          "req-1",
		Title:       "Date Picker",
		Description: "Pick dates",
		Status:      models.StatusUnderReview,
		Priority:    models.PriorityHigh,
		Category:    models.CategoryComponent,
		Metadata:    models.RequestMetadata{TargetRelease: "2026-Q3"},
	})

	_, err := env.svc.TransitionStatus(ctx, req.ID, models.StatusApproved, "bob", "")
	require.NoError(t, err)
	env.svc.Wait()

	calls := env.roadmap.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Date Picker", calls[0].Title)
	assert.Equal(t, "Pick dates", calls[0].Description)
	assert.Equal(t, "high", calls[0].Priority)
	assert.Equal(t, "component", calls[0].Category)
	assert.Equal(t, "planned", calls[0].Status)
	assert.Equal(t, "2026-Q3", calls[0].TargetDate)

	stored := env.get(t, req.ID)
	assert.Equal(t, "roadmap-1", stored.Metadata.RoadmapItemID)
	require.NotNil(t, stored.Metadata.RoadmapItemCreatedAt)

	_, err = env.svc.TransitionStatus(ctx, req.ID, models.StatusInProgress, "bob", "")
	require.NoError(t, err)
	env.svc.Wait()
	assert.Len(t, env.roadmap.Calls(), 1)
}

func TestTransitionStatus_RoadmapFailureKeepsTransition(t *testing.T) {
	env := newTestEnv(t)
	env.roadmap.err = errors.New("roadmap unavailable")
	req := env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Tabs", Status: models.StatusUnderReview})

	updated, err := env.svc.TransitionStatus(context.Background(), req.ID, models.StatusApproved, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	env.svc.Wait()
	stored := env.get(t, req.ID)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Empty(t, stored.Metadata.RoadmapItemID)
	assert.Len(t, env.roadmap.Calls(), 1)
}

func TestTransitionStatus_ExistingRoadmapItemNotRecreated(t *testing.T) {
	env := newTestEnv(t)
	req := env.seed(t, &models.ComponentRequest{
		ID:       "req-1",
		Title:    "Tabs",
		Status:   models.StatusUnderReview,
		Metadata: models.RequestMetadata{RoadmapItemID: "existing"},
	})

	_, err := env.svc.TransitionStatus(context.Background(), req.ID, models.StatusApproved, "bob", "")
	require.NoError(t, err)
	env.svc.Wait()

	assert.Empty(t, env.roadmap.Calls())
}

func TestTransitionStatus_ConcurrentCallsLinearize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.seed(t, &models.ComponentRequest{ID: "req-1", Title: "Tabs", Status: models.StatusUnderReview})

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		invalid   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.TransitionStatus(ctx, req.ID, models.StatusApproved, fmt.Sprintf("user-%d", i), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInvalidTransition):
				invalid++
			}
		}(i)
	}
	wg.Wait()
	env.svc.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, invalid)
	assert.Equal(t, []models.RequestStatus{models.StatusApproved}, historyStatuses(env.history(t, req.ID)))
	assert.Len(t, env.roadmap.Calls(), 1)
}

func TestGetStatusHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.create(t, "Tabs")

	_, err := env.svc.TransitionStatus(ctx, req.ID, models.StatusUnderReview, "bob", "")
	require.NoError(t, err)
	_, err = env.svc.TransitionStatus(ctx, req.ID, models.StatusNeedsMoreInfo, "bob", "which variants?")
	require.NoError(t, err)

	history, err := env.svc.GetStatusHistory(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.RequestStatus{
		models.StatusSubmitted,
		models.StatusUnderReview,
		models.StatusNeedsMoreInfo,
	}, historyStatuses(history))
	assert.Equal(t, "which variants?", history[2].Comment)

	missing, err := env.svc.GetStatusHistory(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMultiWriteOperations_RollBackTogether(t *testing.T) {
	historyDown := errors.New("history unavailable")

	tests := []struct {
		name string
		// run performs the failing operation against a request created before the fault
		run    func(ctx context.Context, env *testEnv, id string) error
		verify func(t *testing.T, env *testEnv, id string)
	}{
		{
			name: "transition keeps status and history",
			run: func(ctx context.Context, env *testEnv, id string) error {
				_, err := env.svc.TransitionStatus(ctx, id, models.StatusUnderReview, "bob", "")
				return err
			},
			verify: func(t *testing.T, env *testEnv, id string) {
				assert.Equal(t, models.StatusSubmitted, env.get(t, id).Status)
				assert.Len(t, env.history(t, id), 1)
			},
		},
		{
			name: "create leaves no request",
			run: func(ctx context.Context, env *testEnv, _ string) error {
				_, err := env.svc.CreateRequest(ctx, &CreateRequestInput{Title: "Stepper", RequestedBy: "carol"})
				return err
			},
			verify: func(t *testing.T, env *testEnv, _ string) {
				all, err := env.store.Requests.List(context.Background())
				require.NoError(t, err)
				assert.Len(t, all, 1)
			},
		},
		{
			name: "delete keeps request and comments",
			run: func(ctx context.Context, env *testEnv, id string) error {
				_, err := env.svc.DeleteRequest(ctx, id)
				return err
			},
			verify: func(t *testing.T, env *testEnv, id string) {
				req := env.get(t, id)
				assert.Len(t, req.Comments, 1)
				comments, err := env.svc.GetComments(context.Background(), id)
				require.NoError(t, err)
				assert.Len(t, comments, 1)
				assert.Len(t, env.history(t, id), 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, staged := newStagedStore()
			env := newTestEnvWithStore(t, store)

			req := env.create(t, "Toast")
			_, err := env.svc.AddComment(ctx, req.ID, &AddCommentInput{Author: "bob", Content: "+1"})
			require.NoError(t, err)
			require.Equal(t, 2, staged.commits)

			staged.historyErr = historyDown
			err = tt.run(ctx, env, req.ID)

			require.ErrorIs(t, err, historyDown)
			assert.Equal(t, 1, staged.rollbacks)
			assert.Equal(t, 2, staged.commits)
			tt.verify(t, env, req.ID)
		})
	}
}

func TestTransitionStatus_CommitsOnce(t *testing.T) {
	store, staged := newStagedStore()
	env := newTestEnvWithStore(t, store)
	req := env.create(t, "Toast")

	_, err := env.svc.TransitionStatus(context.Background(), req.ID, models.StatusUnderReview, "bob", "triage")

	require.NoError(t, err)
	assert.Equal(t, 2, staged.commits)
	assert.Zero(t, staged.rollbacks)
	assert.Equal(t, models.StatusUnderReview, env.get(t, req.ID).Status)
	assert.Equal(t,
		[]models.RequestStatus{models.StatusSubmitted, models.StatusUnderReview},
		historyStatuses(env.history(t, req.ID)))
}
