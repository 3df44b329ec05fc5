package repository

import (
	"context"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

// RequestRepository stores component requests.
// Get returns (nil, nil) for an unknown id. List returns requests in insertion order.
type RequestRepository interface {
	Get(ctx context.Context, id string) (*models.ComponentRequest, error)
	Put(ctx context.Context, req *models.ComponentRequest) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.ComponentRequest, error)
}

// CommentRepository stores request comments, keyed by comment id
type CommentRepository interface {
	Get(ctx context.Context, id string) (*models.RequestComment, error)
	Put(ctx context.Context, comment *models.RequestComment) error
	Delete(ctx context.Context, id string) error
	ListByRequest(ctx context.Context, requestID string) ([]*models.RequestComment, error)
}

// HistoryRepository is the append-only status log, keyed by request id.
// Entries come back in append order.
type HistoryRepository interface {
	Get(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error)
	Append(ctx context.Context, requestID string, entry models.StatusHistoryEntry) error
	Delete(ctx context.Context, requestID string) error
}

// TxFunc runs fn against a Store whose writes commit or roll back together
type TxFunc func(ctx context.Context, fn func(tx *Store) error) error

// Store bundles the three repositories the engine works against
type Store struct {
	Requests RequestRepository
	Comments CommentRepository
	History  HistoryRepository

	// Tx is nil for backends without transactions
	Tx TxFunc
}

// InTx runs fn inside a transaction when the backend has one, otherwise against s directly
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.Tx == nil {
		return fn(s)
	}
	return s.Tx(ctx, fn)
}
