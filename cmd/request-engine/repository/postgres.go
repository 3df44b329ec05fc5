package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/common/db"
	"github.com/jackc/pgx/v5"
)

// Schema is the DDL for the Postgres store; every statement is idempotent
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS component_requests (
		seq          BIGSERIAL,
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		use_case     TEXT NOT NULL DEFAULT '',
		requested_by TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		status       TEXT NOT NULL,
		votes        INTEGER NOT NULL DEFAULT 0,
		voters       TEXT[] NOT NULL DEFAULT '{}',
		category     TEXT NOT NULL,
		priority     TEXT NOT NULL,
		assigned_to  TEXT NOT NULL DEFAULT '',
		comment_ids  TEXT[] NOT NULL DEFAULT '{}',
		component_id TEXT NOT NULL DEFAULT '',
		metadata     JSONB NOT NULL DEFAULT '{}',
		attachments  TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_component_requests_status ON component_requests (status)`,
	`CREATE TABLE IF NOT EXISTS request_comments (
		seq         BIGSERIAL,
		id          TEXT PRIMARY KEY,
		request_id  TEXT NOT NULL,
		author      TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		mentions    TEXT[] NOT NULL DEFAULT '{}',
		attachments TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_comments_request ON request_comments (request_id)`,
	`CREATE TABLE IF NOT EXISTS request_status_history (
		id         BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL,
		status     TEXT NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		user_id    TEXT NOT NULL,
		comment    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_status_history_request ON request_status_history (request_id, id)`,
}

// NewPostgresStore returns a Store backed by Postgres. InTx runs on a pgx transaction.
func NewPostgresStore(database *db.DB) *Store {
	store := newPostgresStore(database)
	store.Tx = func(ctx context.Context, fn func(tx *Store) error) error {
		return database.WithTx(ctx, func(tx pgx.Tx) error {
			return fn(newPostgresStore(tx))
		})
	}
	return store
}

func newPostgresStore(q db.Querier) *Store {
	return &Store{
		Requests: NewPostgresRequestRepository(q),
		Comments: NewPostgresCommentRepository(q),
		History:  NewPostgresHistoryRepository(q),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// PostgresRequestRepository handles database operations for component requests
type PostgresRequestRepository struct {
	db db.Querier
}

// NewPostgresRequestRepository creates a new request repository
func NewPostgresRequestRepository(database db.Querier) *PostgresRequestRepository {
	return &PostgresRequestRepository{db: database}
}

const requestColumns = `id, title, description, use_case, requested_by, created_at, updated_at,
	status, votes, voters, category, priority, assigned_to, comment_ids, component_id, metadata, attachments`

func scanRequest(row pgx.Row) (*models.ComponentRequest, error) {
	req := &models.ComponentRequest{}
	var metadata []byte
	err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Description,
		&req.UseCase,
		&req.RequestedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.Status,
		&req.Votes,
		&req.Voters,
		&req.Category,
		&req.Priority,
		&req.AssignedTo,
		&req.Comments,
		&req.ComponentID,
		&metadata,
		&req.Attachments,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metadata, &req.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for request %s: %w", req.ID, err)
	}
	if len(req.Attachments) == 0 {
		req.Attachments = nil
	}
	return req, nil
}

// Get retrieves a request by id
func (r *PostgresRequestRepository) Get(ctx context.Context, id string) (*models.ComponentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM component_requests WHERE id = $1`

	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// Put upserts a request
func (r *PostgresRequestRepository) Put(ctx context.Context, req *models.ComponentRequest) error {
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO component_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			use_case = EXCLUDED.use_case,
			updated_at = EXCLUDED.updated_at,
			status = EXCLUDED.status,
			votes = EXCLUDED.votes,
			voters = EXCLUDED.voters,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			assigned_to = EXCLUDED.assigned_to,
			comment_ids = EXCLUDED.comment_ids,
			component_id = EXCLUDED.component_id,
			metadata = EXCLUDED.metadata,
			attachments = EXCLUDED.attachments
	`

	_, err = r.db.Exec(
		ctx,
		query,
		req.ID,
		req.Title,
		req.Description,
		req.UseCase,
		req.RequestedBy,
		req.CreatedAt,
		req.UpdatedAt,
		string(req.Status),
		req.Votes,
		nonNil(req.Voters),
		string(req.Category),
		string(req.Priority),
		req.AssignedTo,
		nonNil(req.Comments),
		req.ComponentID,
		metadata,
		nonNil(req.Attachments),
	)
	if err != nil {
		return fmt.Errorf("failed to put request: %w", err)
	}
	return nil
}

// Delete removes a request
func (r *PostgresRequestRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM component_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return nil
}

// List returns all requests in insertion order
func (r *PostgresRequestRepository) List(ctx context.Context) ([]*models.ComponentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM component_requests ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ComponentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return out, nil
}

// PostgresCommentRepository handles database operations for comments
type PostgresCommentRepository struct {
	db db.Querier
}

// NewPostgresCommentRepository creates a new comment repository
func NewPostgresCommentRepository(database db.Querier) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: database}
}

const commentColumns = `id, request_id, author, content, created_at, mentions, attachments`

func scanComment(row pgx.Row) (*models.RequestComment, error) {
	c := &models.RequestComment{}
	if err := row.Scan(&c.ID, &c.RequestID, &c.Author, &c.Content, &c.CreatedAt, &c.Mentions, &c.Attachments); err != nil {
		return nil, err
	}
	if len(c.Attachments) == 0 {
		c.Attachments = nil
	}
	return c, nil
}

// Get retrieves a comment by id
func (r *PostgresCommentRepository) Get(ctx context.Context, id string) (*models.RequestComment, error) {
	c, err := scanComment(r.db.QueryRow(ctx, `SELECT `+commentColumns+` FROM request_comments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// Put upserts a comment
func (r *PostgresCommentRepository) Put(ctx context.Context, c *models.RequestComment) error {
	query := `
		INSERT INTO request_comments (` + commentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			mentions = EXCLUDED.mentions,
			attachments = EXCLUDED.attachments
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.RequestID, c.Author, c.Content, c.CreatedAt, nonNil(c.Mentions), nonNil(c.Attachments))
	if err != nil {
		return fmt.Errorf("failed to put comment: %w", err)
	}
	return nil
}

// Delete removes a comment
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM request_comments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// ListByRequest returns a request's comments in creation order
func (r *PostgresCommentRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.RequestComment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+commentColumns+` FROM request_comments WHERE request_id = $1 ORDER BY seq ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var out []*models.RequestComment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return out, nil
}

// PostgresHistoryRepository handles the status history table
type PostgresHistoryRepository struct {
	db db.Querier
}

// NewPostgresHistoryRepository creates a new history repository
func NewPostgresHistoryRepository(database db.Querier) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: database}
}

// Get returns the request's history in append order
func (r *PostgresHistoryRepository) Get(ctx context.Context, requestID string) ([]models.StatusHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, ts, user_id, comment
		FROM request_status_history
		WHERE request_id = $1
		ORDER BY id ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var out []models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		if err := rows.Scan(&e.Status, &e.Timestamp, &e.UserID, &e.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}
	return out, nil
}

// Append adds an entry to the request's history
func (r *PostgresHistoryRepository) Append(ctx context.Context, requestID string, e models.StatusHistoryEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO request_status_history (request_id, status, ts, user_id, comment)
		VALUES ($1, $2, $3, $4, $5)
	`, requestID, string(e.Status), e.Timestamp, e.UserID, e.Comment)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// Delete purges the request's history
func (r *PostgresHistoryRepository) Delete(ctx context.Context, requestID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM request_status_history WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("failed to delete status history: %w", err)
	}
	return nil
}
