package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reqmw "github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/middleware"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/repository"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/service"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
	"github.com/adamstavely/cautious-lamp-sub001/common/queue"
)

const testTopic = "component.created"

type testServer struct {
	e     *echo.Echo
	queue *queue.MemoryQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.Discard()
	svc := service.NewRequestService(&service.RequestServiceOpts{
		Store:  repository.NewMemoryStore(),
		Logger: log,
	})
	q := queue.NewMemoryQueue(log)
	t.Cleanup(func() {
		svc.Wait()
		q.Close()
	})

	e := echo.New()
	e.Validator = NewRequestValidator()
	e.Use(reqmw.ExtractUserID())

	h := NewRequestHandler(svc, log)
	g := e.Group("/api/v1/component-requests")
	g.POST("", h.CreateRequest)
	g.GET("", h.ListRequests)
	g.GET("/analytics", h.GetAnalytics)
	g.POST("/duplicates", h.CheckDuplicates)
	g.GET("/:id", h.GetRequest)
	g.PATCH("/:id", h.UpdateRequest)
	g.DELETE("/:id", h.DeleteRequest)
	g.POST("/:id/vote", h.VoteRequest)
	g.POST("/:id/transition", h.TransitionStatus)
	g.POST("/:id/approve", h.ApproveRequest)
	g.POST("/:id/reject", h.RejectRequest)
	g.POST("/:id/assign", h.AssignRequest)
	g.GET("/:id/comments", h.GetComments)
	g.POST("/:id/comments", h.AddComment)
	g.POST("/:id/component", h.LinkComponent)
	g.DELETE("/:id/component", h.UnlinkComponent)
	g.GET("/:id/history", h.GetHistory)
	g.GET("/:id/approvals", h.GetApprovals)

	events := NewComponentEventHandler(q, testTopic, log)
	e.POST("/api/v1/components/events", events.ComponentCreated)

	return &testServer{e: e, queue: q}
}

func (s *testServer) do(method, path, user, contentType, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		if contentType == "" {
			contentType = echo.MIMEApplicationJSON
		}
		req.Header.Set(echo.HeaderContentType, contentType)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(t *testing.T, title string) *models.ComponentRequest {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/component-requests", "alice", "",
		`{"title":"`+title+`","description":"Needed by the checkout team","priority":"high"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeRequest(t, rec)
}

func decodeRequest(t *testing.T, rec *httptest.ResponseRecorder) *models.ComponentRequest {
	t.Helper()
	var req models.ComponentRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &req))
	return &req
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateRequest(t *testing.T) {
	s := newTestServer(t)

	req := s.create(t, "Date Picker")
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "Date Picker", req.Title)
	assert.Equal(t, "alice", req.RequestedBy)
	assert.Equal(t, models.StatusSubmitted, req.Status)
	assert.Equal(t, models.PriorityHigh, req.Priority)
	assert.Equal(t, models.CategoryComponent, req.Category)
}

func TestCreateRequest_Rejected(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		user   string
		body   string
		status int
		field  string
	}{
		{"missing user", "", `{"title":"Tabs","description":"x"}`, http.StatusUnauthorized, ""},
		{"malformed body", "alice", `{"title":`, http.StatusBadRequest, ""},
		{"missing title", "alice", `{"description":"x"}`, http.StatusBadRequest, "title"},
		{"missing description", "alice", `{"title":"Tabs"}`, http.StatusBadRequest, "description"},
		{"bad priority", "alice", `{"title":"Tabs","description":"x","priority":"urgent"}`, http.StatusBadRequest, "priority"},
		{"bad category", "alice", `{"title":"Tabs","description":"x","category":"widget"}`, http.StatusBadRequest, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/component-requests", tt.user, "", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.field != "" {
				fields, ok := decodeMap(t, rec)["fields"].(map[string]interface{})
				require.True(t, ok)
				assert.Contains(t, fields, tt.field)
			}
		})
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/component-requests/missing",
		"/api/v1/component-requests/missing/history",
		"/api/v1/component-requests/missing/approvals",
		"/api/v1/component-requests/missing/comments",
	} {
		rec := s.do(http.MethodGet, path, "alice", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := s.do(http.MethodPost, "/api/v1/component-requests/missing/vote", "alice", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApprovalFlow(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Stepper")
	base := "/api/v1/component-requests/" + req.ID

	rec := s.do(http.MethodPost, base+"/approve", "dana", "", `{"stage":"design"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeRequest(t, rec)
	assert.Equal(t, models.StatusUnderReview, got.Status)
	assert.True(t, got.Metadata.DesignApproved)

	rec = s.do(http.MethodPost, base+"/approve", "theo", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeRequest(t, rec).Metadata.TechnicalApproved)

	rec = s.do(http.MethodPost, base+"/approve", "mara", "", `{"stage":"final"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusApproved, decodeRequest(t, rec).Status)

	rec = s.do(http.MethodGet, base+"/approvals", "alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stages, ok := decodeMap(t, rec)["stages"].([]interface{})
	require.True(t, ok)
	require.Len(t, stages, 3)
	for _, st := range stages {
		assert.Equal(t, true, st.(map[string]interface{})["approved"])
	}

	rec = s.do(http.MethodGet, base+"/history", "alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history, ok := decodeMap(t, rec)["history"].([]interface{})
	require.True(t, ok)
	assert.Len(t, history, 3)
}

func TestApproveRequest_BadStage(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Stepper")

	rec := s.do(http.MethodPost, "/api/v1/component-requests/"+req.ID+"/approve", "dana", "", `{"stage":"legal"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionStatus_InvalidEdge(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Tooltip")

	rec := s.do(http.MethodPost, "/api/v1/component-requests/"+req.ID+"/transition", "mara", "", `{"status":"released"}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	body := decodeMap(t, rec)
	assert.Equal(t, "submitted", body["current"])
	assert.ElementsMatch(t, []interface{}{"under-review", "rejected"}, body["allowed"])

	rec = s.do(http.MethodPost, "/api/v1/component-requests/"+req.ID+"/transition", "mara", "", `{"status":"under-review","comment":"looking"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusUnderReview, decodeRequest(t, rec).Status)
}

func TestRejectRequest(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Tooltip")
	path := "/api/v1/component-requests/" + req.ID + "/reject"

	rec := s.do(http.MethodPost, path, "mara", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, path, "mara", "", `{"reason":"covered by Popover"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusRejected, decodeRequest(t, rec).Status)

	rec = s.do(http.MethodPost, path, "mara", "", `{"reason":"again"}`)
	body := decodeMap(t, rec)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []interface{}{}, body["allowed"])
}

func TestUpdateRequest(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Tooltip")
	path := "/api/v1/component-requests/" + req.ID

	rec := s.do(http.MethodPatch, path, "alice", echo.MIMEApplicationJSON, `{"title":"Rich Tooltip","metadata":{"targetRelease":"v4.2"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeRequest(t, rec)
	assert.Equal(t, "Rich Tooltip", got.Title)
	assert.Equal(t, "v4.2", got.Metadata.TargetRelease)

	rec = s.do(http.MethodPatch, path, "alice", "application/json-patch+json", `[{"op":"replace","path":"/priority","value":"critical"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PriorityCritical, decodeRequest(t, rec).Priority)

	rec = s.do(http.MethodPatch, path, "alice", echo.MIMEApplicationJSON, `{"status":"approved"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/v1/component-requests/missing", "alice", echo.MIMEApplicationJSON, `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVoteRequest_Toggles(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Tooltip")
	path := "/api/v1/component-requests/" + req.ID + "/vote"

	rec := s.do(http.MethodPost, path, "bob", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, float64(1), body["votes"])
	assert.Equal(t, true, body["voted"])

	rec = s.do(http.MethodPost, path, "bob", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeMap(t, rec)
	assert.Equal(t, float64(0), body["votes"])
	assert.Equal(t, false, body["voted"])

	rec = s.do(http.MethodPost, path, "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListRequests(t *testing.T) {
	s := newTestServer(t)
	first := s.create(t, "Tooltip")
	s.create(t, "Popover")

	rec := s.do(http.MethodPost, "/api/v1/component-requests/"+first.ID+"/transition", "mara", "", `{"status":"under-review"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name   string
		query  string
		status int
		count  int
	}{
		{"all", "", http.StatusOK, 2},
		{"by status", "?status=under-review,approved", http.StatusOK, 1},
		{"by search", "?search=popo", http.StatusOK, 1},
		{"expression", "?filter=" + "request.status%20%3D%3D%20%22submitted%22", http.StatusOK, 1},
		{"limit", "?limit=1", http.StatusOK, 1},
		{"offset past end", "?offset=5", http.StatusOK, 0},
		{"unlinked", "?linked=false", http.StatusOK, 2},
		{"bad limit", "?limit=-1", http.StatusBadRequest, 0},
		{"bad linked", "?linked=maybe", http.StatusBadRequest, 0},
		{"bad sort", "?sort=alphabetical", http.StatusBadRequest, 0},
		{"bad expression", "?filter=request.votes%20%3E", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/api/v1/component-requests"+tt.query, "alice", "", "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.Equal(t, float64(tt.count), decodeMap(t, rec)["count"])
			}
		})
	}
}

func TestDeleteRequest(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Tooltip")
	path := "/api/v1/component-requests/" + req.ID

	rec := s.do(http.MethodDelete, path, "alice", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, path, "alice", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Tooltip")
	path := "/api/v1/component-requests/" + req.ID + "/comments"

	rec := s.do(http.MethodPost, path, "bob", "", `{"content":"cc @dana and @theo."}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var comment models.RequestComment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comment))
	assert.Equal(t, "bob", comment.Author)
	assert.ElementsMatch(t, []string{"dana", "theo"}, comment.Mentions)

	rec = s.do(http.MethodPost, path, "bob", "", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, path, "alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeMap(t, rec)["count"])
}

func TestLinkComponent(t *testing.T) {
	s := newTestServer(t)
	req := s.create(t, "Tooltip")
	path := "/api/v1/component-requests/" + req.ID + "/component"

	rec := s.do(http.MethodPost, path, "alice", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, path, "alice", "", `{"componentId":"cmp-7"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cmp-7", decodeRequest(t, rec).ComponentID)

	rec = s.do(http.MethodDelete, path, "alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeRequest(t, rec).ComponentID)
}

func TestCheckDuplicates(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "Date Picker")

	rec := s.do(http.MethodPost, "/api/v1/component-requests/duplicates", "alice", "", `{"title":"date picker"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.DuplicateCheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.IsDuplicate)
	require.Len(t, result.Similar, 1)
	assert.Equal(t, 100, result.Similar[0].Similarity)
}

func TestGetAnalytics(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "Tooltip")

	rec := s.do(http.MethodGet, "/api/v1/component-requests/analytics", "alice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var analytics models.RequestAnalytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analytics))
	assert.Equal(t, 1, analytics.TotalRequests)
	assert.Equal(t, 1, analytics.ByStatus[models.StatusSubmitted])
	assert.Len(t, analytics.RequestsOverTime, 30)
}

func TestComponentCreated_Publishes(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var mu sync.Mutex
	var got []models.ComponentCreatedEvent
	require.NoError(t, s.queue.Subscribe(ctx, testTopic, func(ctx context.Context, key string, value []byte) error {
		var event models.ComponentCreatedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
		return nil
	}))

	rec := s.do(http.MethodPost, "/api/v1/components/events", "", "", `{"componentId":"cmp-1","componentName":"Tooltip"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "cmp-1", got[0].ComponentID)
	assert.Equal(t, "Tooltip", got[0].ComponentName)

	rec = s.do(http.MethodPost, "/api/v1/components/events", "", "", `{"componentName":"Tooltip"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
