package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/repository"
	"github.com/adamstavely/cautious-lamp-sub001/common/validation"
)

const maxPatchOperations = 50

var patchValidator = validation.NewPatchValidator(maxPatchOperations,
	"title", "description", "useCase", "category", "priority", "attachments", "metadata")

// CreateRequestInput carries the fields a submitter controls
type CreateRequestInput struct {
	Title           string
	Description     string
	UseCase         string
	RequestedBy     string
	Category        models.Category
	Priority        models.Priority
	Attachments     []string
	EstimatedEffort string
	TargetRelease   string
}

// PatchKind selects how UpdateRequest interprets its patch document
type PatchKind string

const (
	// MergePatch is an RFC 7386 JSON merge patch
	MergePatch PatchKind = "merge"
	// JSONPatch is an RFC 6902 list of patch operations
	JSONPatch PatchKind = "json"
)

// editableRequest is the document patches are applied to.
// Anything a patch adds outside these fields is rejected.
type editableRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	UseCase     string           `json:"useCase"`
	Category    models.Category  `json:"category"`
	Priority    models.Priority  `json:"priority"`
	Attachments []string         `json:"attachments"`
	Metadata    editableMetadata `json:"metadata"`
}

type editableMetadata struct {
	EstimatedEffort string `json:"estimatedEffort"`
	TargetRelease   string `json:"targetRelease"`
}

// CreateRequest stores a new submitted request and its first history entry
func (s *RequestService) CreateRequest(ctx context.Context, input *CreateRequestInput) (*models.ComponentRequest, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	if input.RequestedBy == "" {
		return nil, validationError("requestedBy is required")
	}

	category := input.Category
	if category == "" {
		category = models.CategoryComponent
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	now := s.now()
	req := &models.ComponentRequest{
		ID:          s.newID(),
		Title:       title,
		Description: input.Description,
		UseCase:     input.UseCase,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      models.StatusSubmitted,
		Votes:       0,
		Voters:      []string{},
		Category:    category,
		Priority:    priority,
		Comments:    []string{},
		Attachments: input.Attachments,
		Metadata: models.RequestMetadata{
			EstimatedEffort: input.EstimatedEffort,
			TargetRelease:   input.TargetRelease,
		},
	}

	entry := models.StatusHistoryEntry{
		Status:    models.StatusSubmitted,
		Timestamp: now,
		UserID:    input.RequestedBy,
		Comment:   "Request submitted",
	}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Requests.Put(ctx, req); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		if err := tx.History.Append(ctx, req.ID, entry); err != nil {
			return fmt.Errorf("failed to append status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithRequestID(req.ID).Info("component request created",
		"title", req.Title,
		"requested_by", req.RequestedBy,
		"priority", req.Priority)
	return req, nil
}

// GetRequest returns the request or nil
func (s *RequestService) GetRequest(ctx context.Context, id string) (*models.ComponentRequest, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// GetAllRequests lists requests matching filter, sorted and paginated
func (s *RequestService) GetAllRequests(ctx context.Context, filter *RequestFilter) ([]*models.ComponentRequest, error) {
	if filter == nil {
		filter = &RequestFilter{}
	}
	if !validSort(filter.Sort) {
		return nil, validationError("unknown sort %q", filter.Sort)
	}
	if filter.Expression != "" {
		if err := s.filters.Compile(filter.Expression); err != nil {
			return nil, err
		}
	}

	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	out := make([]*models.ComponentRequest, 0, len(all))
	for _, req := range all {
		if !filter.matchesFields(req) {
			continue
		}
		if filter.Expression != "" {
			ok, err := s.filters.Matches(filter.Expression, req)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, req)
	}

	sortRequests(out, filter.Sort)
	return paginate(out, filter.Limit, filter.Offset), nil
}

// UpdateRequest applies a patch to the request's editable fields.
// Status, votes, links and approval flags are owned by their own operations.
func (s *RequestService) UpdateRequest(ctx context.Context, id string, patch []byte, kind PatchKind, userID string) (*models.ComponentRequest, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	attachments := req.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	doc, err := json.Marshal(editableRequest{
		Title:       req.Title,
		Description: req.Description,
		UseCase:     req.UseCase,
		Category:    req.Category,
		Priority:    req.Priority,
		Attachments: attachments,
		Metadata: editableMetadata{
			EstimatedEffort: req.Metadata.EstimatedEffort,
			TargetRelease:   req.Metadata.TargetRelease,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	patched, err := applyPatch(doc, patch, kind)
	if err != nil {
		return nil, err
	}

	var updated editableRequest
	dec := json.NewDecoder(bytes.NewReader(patched))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&updated); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	updated.Title = strings.TrimSpace(updated.Title)
	if updated.Title == "" {
		return nil, validationError("title is required")
	}
	if !updated.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, updated.Category)
	}
	if !updated.Priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, updated.Priority)
	}

	req.Title = updated.Title
	req.Description = updated.Description
	req.UseCase = updated.UseCase
	req.Category = updated.Category
	req.Priority = updated.Priority
	req.Attachments = updated.Attachments
	req.Metadata.EstimatedEffort = updated.Metadata.EstimatedEffort
	req.Metadata.TargetRelease = updated.Metadata.TargetRelease
	req.UpdatedAt = s.now()

	if err := s.requests.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	s.logger.WithContext(ctx).WithRequestID(id).Info("component request updated", "user_id", userID, "patch_kind", kind)
	return req, nil
}

func applyPatch(doc, patch []byte, kind PatchKind) ([]byte, error) {
	switch kind {
	case MergePatch, "":
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(patch, &fields); err != nil {
			return nil, fmt.Errorf("%w: merge patch must be a JSON object", ErrInvalidPatch)
		}
		merged, err := jsonpatch.MergePatch(doc, patch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		return merged, nil
	case JSONPatch:
		var raw []map[string]interface{}
		if err := json.Unmarshal(patch, &raw); err != nil {
			return nil, fmt.Errorf("%w: JSON patch must be an array of operations", ErrInvalidPatch)
		}
		if err := patchValidator.ValidateOperations(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		ops, err := jsonpatch.DecodePatch(patch)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode patch: %v", ErrInvalidPatch, err)
		}
		modified, err := ops.Apply(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to apply patch operations: %v", ErrInvalidPatch, err)
		}
		return modified, nil
	default:
		return nil, fmt.Errorf("%w: unsupported patch kind %q", ErrInvalidPatch, kind)
	}
}

// DeleteRequest removes the request with its comments and status history.
// Returns false when the request does not exist.
func (s *RequestService) DeleteRequest(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return false, nil
	}

	comments, err := s.comments.ListByRequest(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to list comments: %w", err)
	}
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		for _, c := range comments {
			if err := tx.Comments.Delete(ctx, c.ID); err != nil {
				return fmt.Errorf("failed to delete comment %s: %w", c.ID, err)
			}
		}
		if err := tx.History.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete status history: %w", err)
		}
		if err := tx.Requests.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete request: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.WithContext(ctx).WithRequestID(id).Info("component request deleted", "comments_removed", len(comments))
	return true, nil
}

// VoteRequest toggles userID's vote. Calling it twice restores the original state.
func (s *RequestService) VoteRequest(ctx context.Context, id, userID string) (*models.ComponentRequest, error) {
	if userID == "" {
		return nil, validationError("user id is required to vote")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	voted := req.HasVoted(userID)
	if voted {
		voters := req.Voters[:0]
		for _, v := range req.Voters {
			if v != userID {
				voters = append(voters, v)
			}
		}
		req.Voters = voters
	} else {
		req.Voters = append(req.Voters, userID)
	}
	req.Votes = len(req.Voters)
	req.UpdatedAt = s.now()

	if err := s.requests.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	s.logger.WithContext(ctx).WithRequestID(id).Debug("vote toggled",
		"user_id", userID,
		"voted", !voted,
		"votes", req.Votes)
	return req, nil
}

// AssignRequest sets the assignee. An empty assignee clears it.
func (s *RequestService) AssignRequest(ctx context.Context, id, assignee, userID string) (*models.ComponentRequest, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	req.AssignedTo = strings.TrimSpace(assignee)
	req.UpdatedAt = s.now()
	if err := s.requests.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	s.logger.WithContext(ctx).WithRequestID(id).Info("component request assigned",
		"assigned_to", req.AssignedTo,
		"user_id", userID)
	return req, nil
}
