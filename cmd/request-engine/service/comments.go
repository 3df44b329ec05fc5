package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/repository"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([\w.\-]+)`)

// AddCommentInput carries a new comment. Mentions are parsed from Content when empty.
type AddCommentInput struct {
	Author      string
	Content     string
	Mentions    []string
	Attachments []string
}

// AddComment stores a comment and appends its id to the request.
// Returns nil when the request does not exist.
func (s *RequestService) AddComment(ctx context.Context, requestID string, input *AddCommentInput) (*models.RequestComment, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, validationError("comment content is required")
	}
	if input.Author == "" {
		return nil, validationError("comment author is required")
	}

	unlock := s.locks.Lock(requestID)
	defer unlock()

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	mentions := input.Mentions
	if len(mentions) == 0 {
		mentions = extractMentions(content)
	}

	now := s.now()
	comment := &models.RequestComment{
		ID:          s.newID(),
		RequestID:   requestID,
		Author:      input.Author,
		Content:     content,
		CreatedAt:   now,
		Mentions:    mentions,
		Attachments: input.Attachments,
	}
	req.Comments = append(req.Comments, comment.ID)
	req.UpdatedAt = now
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Comments.Put(ctx, comment); err != nil {
			return fmt.Errorf("failed to save comment: %w", err)
		}
		if err := tx.Requests.Put(ctx, req); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithRequestID(requestID).Info("comment added",
		"comment_id", comment.ID,
		"author", comment.Author,
		"mentions", len(mentions))
	return comment, nil
}

// GetComments returns the request's comments in creation order
func (s *RequestService) GetComments(ctx context.Context, requestID string) ([]*models.RequestComment, error) {
	comments, err := s.comments.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	if comments == nil {
		comments = []*models.RequestComment{}
	}
	return comments, nil
}

// GetComment returns a single comment or nil
func (s *RequestService) GetComment(ctx context.Context, id string) (*models.RequestComment, error) {
	comment, err := s.comments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// extractMentions returns unique @handles in order of first appearance
func extractMentions(content string) []string {
	mentions := []string{}
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		handle := strings.TrimRight(m[1], ".-")
		if handle == "" || seen[handle] {
			continue
		}
		seen[handle] = true
		mentions = append(mentions, handle)
	}
	return mentions
}
