package service

import (
	"context"
	"fmt"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

type stageDefinition struct {
	stage models.ApprovalStage
	role  string
}

// approvalStages are signed off in this order
var approvalStages = []stageDefinition{
	{stage: models.StageDesign, role: "designer"},
	{stage: models.StageTechnical, role: "developer"},
	{stage: models.StageFinal, role: "design_system_manager"},
}

// StageRole returns the role expected to sign off stage
func StageRole(stage models.ApprovalStage) (string, bool) {
	for _, def := range approvalStages {
		if def.stage == stage {
			return def.role, true
		}
	}
	return "", false
}

// nextStage picks the first unapproved boolean stage, else final
func nextStage(meta models.RequestMetadata) models.ApprovalStage {
	switch {
	case !meta.DesignApproved:
		return models.StageDesign
	case !meta.TechnicalApproved:
		return models.StageTechnical
	default:
		return models.StageFinal
	}
}

// ApproveRequest records a stage sign-off. An empty stage selects the next pending one.
// A submitted request is moved to under-review first. The final stage approves the
// request only once design and technical are both signed off; otherwise it does nothing.
func (s *RequestService) ApproveRequest(ctx context.Context, id, userID string, stage models.ApprovalStage) (*models.ComponentRequest, error) {
	if stage != "" {
		if _, ok := StageRole(stage); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
		}
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

	if req.Status == models.StatusSubmitted {
		if err := s.transitionLocked(ctx, req, models.StatusUnderReview, userID, "Review started by approval"); err != nil {
			return nil, err
		}
	}

	if stage == "" {
		stage = nextStage(req.Metadata)
	}
	log := s.logger.WithContext(ctx).WithRequestID(id)

	switch stage {
	case models.StageDesign:
		req.Metadata.DesignApproved = true
		req.Metadata.DesignReview = true
	case models.StageTechnical:
		req.Metadata.TechnicalApproved = true
		req.Metadata.TechnicalReview = true
	case models.StageFinal:
		if req.Metadata.DesignApproved && req.Metadata.TechnicalApproved && req.Status == models.StatusUnderReview {
			if err := s.transitionLocked(ctx, req, models.StatusApproved, userID, "Final approval"); err != nil {
				return nil, err
			}
		} else {
			log.Info("final approval ignored, earlier stages pending",
				"status", req.Status,
				"design_approved", req.Metadata.DesignApproved,
				"technical_approved", req.Metadata.TechnicalApproved)
		}
		return req, nil
	}

	req.UpdatedAt = s.now()
	if err := s.requests.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	log.Info("approval stage signed off", "stage", stage, "user_id", userID)
	return req, nil
}

// RejectRequest moves the request to rejected and clears both approval flags
func (s *RequestService) RejectRequest(ctx context.Context, id, userID, reason string) (*models.ComponentRequest, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	// transitionLocked clears the flags as part of the same write
	if err := s.transitionLocked(ctx, req, models.StatusRejected, userID, reason); err != nil {
		return nil, err
	}
	return req, nil
}

// GetApprovalProgress reports each stage of the request's sign-off.
// Returns nil for an unknown request.
func (s *RequestService) GetApprovalProgress(ctx context.Context, id string) ([]models.StageProgress, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if req == nil {
		return nil, nil
	}

	progress := make([]models.StageProgress, 0, len(approvalStages))
	for _, def := range approvalStages {
		var approved bool
		switch def.stage {
		case models.StageDesign:
			approved = req.Metadata.DesignApproved
		case models.StageTechnical:
			approved = req.Metadata.TechnicalApproved
		case models.StageFinal:
			approved = pastApproval(req.Status)
		}
		progress = append(progress, models.StageProgress{
			Stage:    def.stage,
			Role:     def.role,
			Approved: approved,
		})
	}
	return progress, nil
}

func pastApproval(status models.RequestStatus) bool {
	switch status {
	case models.StatusApproved, models.StatusInProgress, models.StatusCompleted, models.StatusReleased:
		return true
	}
	return false
}
