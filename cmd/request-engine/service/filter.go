package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

// Sort orders accepted by RequestFilter.Sort
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortVotes    = "votes"
	SortPriority = "priority"
	SortUpdated  = "updated"
)

// RequestFilter narrows and orders the result of GetAllRequests.
// Zero values mean "no constraint"; an empty Sort means newest first.
// Linked keeps only linked (true) or unlinked (false) requests when set.
type RequestFilter struct {
	Status      []models.RequestStatus
	Category    []models.Category
	Priority    []models.Priority
	RequestedBy string
	AssignedTo  string
	Linked      *bool
	Search      string
	Expression  string
	Sort        string
	Limit       int
	Offset      int
}

// FilterEvaluator runs CEL expressions against requests.
// Expressions see a single variable, request, holding the request's JSON-shaped fields.
type FilterEvaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewFilterEvaluator creates an evaluator with an empty program cache
func NewFilterEvaluator() *FilterEvaluator {
	return &FilterEvaluator{
		cache: make(map[string]cel.Program),
	}
}

// Compile checks that expr is valid and caches its program
func (e *FilterEvaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Matches evaluates expr against req
func (e *FilterEvaluator) Matches(expr string, req *models.ComponentRequest) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"request": requestActivation(req),
	})
	if err != nil {
		return false, fmt.Errorf("%w: evaluation error: %v", ErrInvalidFilter, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression did not return boolean, got %T", ErrInvalidFilter, out.Value())
	}
	return result, nil
}

func (e *FilterEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()
	if exists {
		return prg, nil
	}

	prg, err := compileFilter(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

func compileFilter(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("request", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return prg, nil
}

// CacheSize returns the number of cached expressions
func (e *FilterEvaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func requestActivation(req *models.ComponentRequest) map[string]any {
	attachments := req.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	voters := req.Voters
	if voters == nil {
		voters = []string{}
	}

	return map[string]any{
		"id":          req.ID,
		"title":       req.Title,
		"description": req.Description,
		"useCase":     req.UseCase,
		"requestedBy": req.RequestedBy,
		"createdAt":   req.CreatedAt,
		"updatedAt":   req.UpdatedAt,
		"status":      string(req.Status),
		"votes":       int64(req.Votes),
		"voters":      voters,
		"category":    string(req.Category),
		"priority":    string(req.Priority),
		"assignedTo":  req.AssignedTo,
		"componentId": req.ComponentID,
		"attachments": attachments,
		"metadata": map[string]any{
			"estimatedEffort":   req.Metadata.EstimatedEffort,
			"designReview":      req.Metadata.DesignReview,
			"technicalReview":   req.Metadata.TechnicalReview,
			"designApproved":    req.Metadata.DesignApproved,
			"technicalApproved": req.Metadata.TechnicalApproved,
			"roadmapItemId":     req.Metadata.RoadmapItemID,
			"targetRelease":     req.Metadata.TargetRelease,
		},
	}
}

// matchesFields applies the structured (non-CEL) part of the filter
func (f *RequestFilter) matchesFields(req *models.ComponentRequest) bool {
	if len(f.Status) > 0 && !containsValue(f.Status, req.Status) {
		return false
	}
	if len(f.Category) > 0 && !containsValue(f.Category, req.Category) {
		return false
	}
	if len(f.Priority) > 0 && !containsValue(f.Priority, req.Priority) {
		return false
	}
	if f.RequestedBy != "" && req.RequestedBy != f.RequestedBy {
		return false
	}
	if f.AssignedTo != "" && req.AssignedTo != f.AssignedTo {
		return false
	}
	if f.Linked != nil && (req.ComponentID != "") != *f.Linked {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(req.Title + "\n" + req.Description + "\n" + req.UseCase)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func validSort(s string) bool {
	switch s {
	case "", SortNewest, SortOldest, SortVotes, SortPriority, SortUpdated:
		return true
	}
	return false
}

func sortRequests(requests []*models.ComponentRequest, order string) {
	var less func(a, b *models.ComponentRequest) bool
	switch order {
	case "", SortNewest:
		less = func(a, b *models.ComponentRequest) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortOldest:
		less = func(a, b *models.ComponentRequest) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortVotes:
		less = func(a, b *models.ComponentRequest) bool { return a.Votes > b.Votes }
	case SortPriority:
		less = func(a, b *models.ComponentRequest) bool { return a.Priority.Rank() > b.Priority.Rank() }
	case SortUpdated:
		less = func(a, b *models.ComponentRequest) bool { return a.UpdatedAt.After(b.UpdatedAt) }
	default:
		return
	}
	sort.SliceStable(requests, func(i, j int) bool { return less(requests[i], requests[j]) })
}

func paginate(requests []*models.ComponentRequest, limit, offset int) []*models.ComponentRequest {
	if offset > 0 {
		if offset >= len(requests) {
			return []*models.ComponentRequest{}
		}
		requests = requests[offset:]
	}
	if limit > 0 && limit < len(requests) {
		requests = requests[:limit]
	}
	return requests
}
