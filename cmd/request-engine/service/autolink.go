package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

const minKeywordOverlap = 2

// OnComponentCreated links a newly created component to a pending request.
// An explicit LinkedRequestID wins; otherwise approved and in-progress requests
// without a component are matched on title, keywords and description, and the
// highest priority (then newest) match is linked. No match is not an error.
func (s *RequestService) OnComponentCreated(ctx context.Context, event models.ComponentCreatedEvent) (*models.ComponentRequest, error) {
	log := s.logger.WithContext(ctx).WithComponentID(event.ComponentID)

	if event.LinkedRequestID != "" {
		linked, err := s.linkFromEvent(ctx, event.LinkedRequestID, event.ComponentID, nil)
		if err != nil {
			return nil, err
		}
		if linked != nil {
			recordAutoLink("explicit")
			log.Info("component linked to requested id", "request_id", linked.ID)
			return linked, nil
		}
		log.Warn("linked request not found, falling back to matching", "request_id", event.LinkedRequestID)
	}

	requests, err := s.requests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	var best *models.ComponentRequest
	for _, req := range requests {
		if !linkCandidate(req) || !matchesComponent(req, event.ComponentName) {
			continue
		}
		if best == nil || betterLinkCandidate(req, best) {
			best = req
		}
	}

	if best == nil {
		recordAutoLink("no_match")
		log.Debug("no request matches component", "component_name", event.ComponentName)
		return nil, nil
	}

	linked, err := s.linkFromEvent(ctx, best.ID, event.ComponentID, linkCandidate)
	if err != nil {
		return nil, err
	}
	if linked == nil {
		recordAutoLink("no_match")
		log.Info("matched request changed before linking", "request_id", best.ID)
		return nil, nil
	}

	recordAutoLink("matched")
	log.Info("component auto-linked to request",
		"request_id", linked.ID,
		"component_name", event.ComponentName)
	return linked, nil
}

// LinkToComponent sets componentId. An in-progress request is completed by the system user.
func (s *RequestService) LinkToComponent(ctx context.Context, id, componentID string) (*models.ComponentRequest, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	if err := s.linkLocked(ctx, req, componentID); err != nil {
		return nil, err
	}
	return req, nil
}

// UnlinkFromComponent clears componentId and leaves the status alone
func (s *RequestService) UnlinkFromComponent(ctx context.Context, id string) (*models.ComponentRequest, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	req.ComponentID = ""
	req.UpdatedAt = s.now()
	if err := s.requests.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	s.logger.WithContext(ctx).WithRequestID(id).Info("request unlinked from component")
	return req, nil
}

func (s *RequestService) linkLocked(ctx context.Context, req *models.ComponentRequest, componentID string) error {
	req.ComponentID = componentID
	req.UpdatedAt = s.now()
	if err := s.requests.Put(ctx, req); err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}

	s.logger.WithContext(ctx).WithRequestID(req.ID).Info("request linked to component", "component_id", componentID)

	if req.Status == models.StatusInProgress {
		comment := fmt.Sprintf("Component %s linked", componentID)
		if err := s.transitionLocked(ctx, req, models.StatusCompleted, systemUser, comment); err != nil {
			return err
		}
	}
	return nil
}

// linkFromEvent links under the request's lock and starts work on an approved request.
// eligible, when set, is re-checked against the locked copy; a failed check returns nil.
func (s *RequestService) linkFromEvent(ctx context.Context, id, componentID string, eligible func(*models.ComponentRequest) bool) (*models.ComponentRequest, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil || (eligible != nil && !eligible(req)) {
		return nil, nil
	}

	if err := s.linkLocked(ctx, req, componentID); err != nil {
		return nil, err
	}
	if req.Status == models.StatusApproved {
		comment := fmt.Sprintf("Component %s created", componentID)
		if err := s.transitionLocked(ctx, req, models.StatusInProgress, systemUser, comment); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func linkCandidate(req *models.ComponentRequest) bool {
	return req.ComponentID == "" &&
		(req.Status == models.StatusApproved || req.Status == models.StatusInProgress)
}

func betterLinkCandidate(a, b *models.ComponentRequest) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// matchesComponent is the fuzzy name heuristic. False positives are accepted.
func matchesComponent(req *models.ComponentRequest, componentName string) bool {
	name := strings.ToLower(strings.TrimSpace(componentName))
	if name == "" {
		return false
	}
	title := strings.ToLower(strings.TrimSpace(req.Title))
	description := strings.ToLower(strings.TrimSpace(req.Description))

	if title != "" && (strings.Contains(title, name) || strings.Contains(name, title)) {
		return true
	}

	if keywordOverlap(title, name) >= minKeywordOverlap {
		return true
	}

	if description != "" {
		if strings.Contains(description, name) {
			return true
		}
		if first := strings.Fields(description)[0]; utf8.RuneCountInString(first) > 2 && strings.Contains(name, first) {
			return true
		}
	}
	return false
}

// keywordOverlap counts title keywords that contain, or are contained in, a name keyword
func keywordOverlap(title, name string) int {
	nameWords := keywords(name)
	count := 0
	for _, tw := range keywords(title) {
		for _, nw := range nameWords {
			if strings.Contains(tw, nw) || strings.Contains(nw, tw) {
				count++
				break
			}
		}
	}
	return count
}

func keywords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}
