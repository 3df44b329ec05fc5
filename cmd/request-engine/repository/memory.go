package repository

import (
	"context"
	"sync"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

// NewMemoryStore returns a Store backed by in-process maps
func NewMemoryStore() *Store {
	return &Store{
		Requests: NewMemoryRequestRepository(),
		Comments: NewMemoryCommentRepository(),
		History:  NewMemoryHistoryRepository(),
	}
}

// MemoryRequestRepository keeps requests in memory, preserving insertion order
type MemoryRequestRepository struct {
	mu    sync.RWMutex
	items map[string]*models.ComponentRequest
	order []string
}

// NewMemoryRequestRepository creates an empty repository
func NewMemoryRequestRepository() *MemoryRequestRepository {
	return &MemoryRequestRepository{
		items: make(map[string]*models.ComponentRequest),
	}
}

// Get returns a copy of the request or nil
func (r *MemoryRequestRepository) Get(ctx context.Context, id string) (*models.ComponentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.items[id].Clone(), nil
}

// Put inserts or replaces a request
func (r *MemoryRequestRepository) Put(ctx context.Context, req *models.ComponentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[req.ID]; !exists {
		r.order = append(r.order, req.ID)
	}
	r.items[req.ID] = req.Clone()
	return nil
}

// Delete removes a request; unknown ids are ignored
func (r *MemoryRequestRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return nil
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns copies of all requests in insertion order
func (r *MemoryRequestRepository) List(ctx context.Context) ([]*models.ComponentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ComponentRequest, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Clone())
	}
	return out, nil
}

// MemoryCommentRepository keeps comments in memory
type MemoryCommentRepository struct {
	mu    sync.RWMutex
	items map[string]*models.RequestComment
	order []string
}

// NewMemoryCommentRepository creates an empty repository
func NewMemoryCommentRepository() *MemoryCommentRepository {
	return &MemoryCommentRepository{
		items: make(map[string]*models.RequestComment),
	}
}

func cloneComment(c *models.RequestComment) *models.RequestComment {
	if c == nil {
		return nil
	}
	out := *c
	out.Mentions = append([]string(nil), c.Mentions...)
	if c.Attachments != nil {
		out.Attachments = append([]string(nil), c.Attachments...)
	}
	return &out
}

// Get returns a copy of the comment or nil
func (r *MemoryCommentRepository) Get(ctx context.Context, id string) (*models.RequestComment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneComment(r.items[id]), nil
}

// Put inserts or replaces a comment
func (r *MemoryCommentRepository) Put(ctx context.Context, comment *models.RequestComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[comment.ID]; !exists {
		r.order = append(r.order, comment.ID)
	}
	r.items[comment.ID] = cloneComment(comment)
	return nil
}

// Delete removes a comment
func (r *MemoryCommentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return nil
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListByRequest returns the request's comments in creation order
func (r *MemoryCommentRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.RequestComment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.RequestComment
	for _, id := range r.order {
		if c := r.items[id]; c.RequestID == requestID {
			out = append(out, cloneComment(c))
		}
	}
	return out, nil
}

// MemoryHistoryRepository keeps status history in memory
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]models.StatusHistoryEntry
}

// NewMemoryHistoryRepository creates an empty repository
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{
		entries: make(map[string][]models.StatusHistoryEntry),
	}
}

// Get returns a copy of the request's history
func (r *MemoryHistoryRepository) Get(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]models.StatusHistoryEntry(nil), r.entries[requestID]...), nil
}

// Append adds an entry to the end of the request's history
func (r *MemoryHistoryRepository) Append(ctx context.Context, requestID string, entry models.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[requestID] = append(r.entries[requestID], entry)
	return nil
}

// Delete purges the request's history
func (r *MemoryHistoryRepository) Delete(ctx context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, requestID)
	return nil
}
