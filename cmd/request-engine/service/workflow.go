package service

import (
	"context"
	"fmt"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/repository"
	"github.com/adamstavely/cautious-lamp-sub001/common/clients"
)

// allowedTransitions is the complete state graph. Statuses without an entry are terminal.
var allowedTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.StatusSubmitted:     {models.StatusUnderReview, models.StatusRejected},
	models.StatusUnderReview:   {models.StatusApproved, models.StatusRejected, models.StatusNeedsMoreInfo},
	models.StatusNeedsMoreInfo: {models.StatusUnderReview, models.StatusRejected},
	models.StatusApproved:      {models.StatusInProgress, models.StatusRejected},
	models.StatusInProgress:    {models.StatusCompleted, models.StatusRejected},
	models.StatusCompleted:     {models.StatusReleased},
	models.StatusReleased:      {},
	models.StatusRejected:      {},
}

const systemUser = "system"

// AllowedTransitions returns the statuses reachable in one step from status
func AllowedTransitions(status models.RequestStatus) []models.RequestStatus {
	return append([]models.RequestStatus{}, allowedTransitions[status]...)
}

// CanTransition reports whether from -> to is an edge of the workflow
func CanTransition(from, to models.RequestStatus) bool {
	return containsValue(allowedTransitions[from], to)
}

// TransitionStatus moves a request to newStatus.
// Returns (nil, nil) when the request does not exist.
func (s *RequestService) TransitionStatus(ctx context.Context, id string, newStatus models.RequestStatus, userID, comment string) (*models.ComponentRequest, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	if err := s.transitionLocked(ctx, req, newStatus, userID, comment); err != nil {
		return nil, err
	}
	return req, nil
}

// transitionLocked validates and commits a status change. The caller holds the request's lock.
func (s *RequestService) transitionLocked(ctx context.Context, req *models.ComponentRequest, newStatus models.RequestStatus, userID, comment string) error {
	from := req.Status
	if !CanTransition(from, newStatus) {
		recordInvalidTransition(string(from), string(newStatus))
		return &InvalidTransitionError{
			RequestID: req.ID,
			From:      from,
			To:        newStatus,
			Allowed:   AllowedTransitions(from),
		}
	}

	now := s.now()
	req.Status = newStatus
	req.UpdatedAt = now
	if newStatus == models.StatusRejected {
		req.Metadata.DesignApproved = false
		req.Metadata.TechnicalApproved = false
	}

	entry := models.StatusHistoryEntry{
		Status:    newStatus,
		Timestamp: now,
		UserID:    userID,
		Comment:   comment,
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
		return err
	}

	recordTransition(string(from), string(newStatus))
	s.logger.WithContext(ctx).WithRequestID(req.ID).Info("request status changed",
		"from", from,
		"to", newStatus,
		"user_id", userID)

	if newStatus == models.StatusApproved && req.Metadata.RoadmapItemID == "" {
		s.createRoadmapItemAsync(ctx, req)
	}
	return nil
}

// createRoadmapItemAsync fires the roadmap call without blocking the transition.
// Failures are logged and never retried.
func (s *RequestService) createRoadmapItemAsync(ctx context.Context, req *models.ComponentRequest) {
	if s.roadmap == nil {
		return
	}

	input := clients.RoadmapItemInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    string(req.Category),
		Priority:    string(req.Priority),
		Status:      "planned",
		TargetDate:  req.Metadata.TargetRelease,
	}
	requestID := req.ID
	log := s.logger.WithContext(ctx).WithRequestID(requestID)
	bg := context.WithoutCancel(ctx)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				recordRoadmapItem(false)
				log.Error("roadmap item creation panicked", "panic", r)
			}
		}()

		callCtx, cancel := context.WithTimeout(bg, s.roadmapTimeout)
		defer cancel()

		item, err := s.roadmap.CreateRoadmapItem(callCtx, input)
		if err == nil && (item == nil || item.ID == "") {
			err = fmt.Errorf("roadmap service returned no item id")
		}
		if err != nil {
			recordRoadmapItem(false)
			log.Error("failed to create roadmap item", "error", err)
			return
		}
		recordRoadmapItem(true)

		if err := s.attachRoadmapItem(bg, requestID, item.ID); err != nil {
			log.Error("failed to record roadmap item on request", "roadmap_item_id", item.ID, "error", err)
			return
		}
		log.Info("roadmap item created for approved request", "roadmap_item_id", item.ID)
	}()
}

func (s *RequestService) attachRoadmapItem(ctx context.Context, requestID, itemID string) error {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get request: %w", err)
	}
	// deleted while the call was in flight
	if req == nil || req.Metadata.RoadmapItemID != "" {
		return nil
	}

	createdAt := s.now()
	req.Metadata.RoadmapItemID = itemID
	req.Metadata.RoadmapItemCreatedAt = &createdAt
	return s.requests.Put(ctx, req)
}

// GetStatusHistory returns the request's status log, oldest first.
// Returns nil for an unknown request.
func (s *RequestService) GetStatusHistory(ctx context.Context, id string) ([]models.StatusHistoryEntry, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	entries, err := s.history.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	if entries == nil {
		entries = []models.StatusHistoryEntry{}
	}
	return entries, nil
}
