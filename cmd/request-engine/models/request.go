package models

import (
	"time"
)

// RequestStatus is the workflow state of a component request
type RequestStatus string

const (
	StatusSubmitted     RequestStatus = "submitted"
	StatusUnderReview   RequestStatus = "under-review"
	StatusNeedsMoreInfo RequestStatus = "needs-more-info"
	StatusApproved      RequestStatus = "approved"
	StatusInProgress    RequestStatus = "in-progress"
	StatusCompleted     RequestStatus = "completed"
	StatusReleased      RequestStatus = "released"
	StatusRejected      RequestStatus = "rejected"
)

// AllStatuses lists every workflow state in lifecycle order
var AllStatuses = []RequestStatus{
	StatusSubmitted,
	StatusUnderReview,
	StatusNeedsMoreInfo,
	StatusApproved,
	StatusInProgress,
	StatusCompleted,
	StatusReleased,
	StatusRejected,
}

// Valid reports whether s is one of the eight workflow states
func (s RequestStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority of a request
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AllPriorities lists priorities from lowest to highest
var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Rank orders priorities: critical > high > medium > low. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Category classifies what kind of design-system artifact is being requested
type Category string

const (
	CategoryComponent Category = "component"
	CategoryPattern   Category = "pattern"
	CategoryToken     Category = "token"
	CategoryIcon      Category = "icon"
	CategoryLayout    Category = "layout"
	CategoryUtility   Category = "utility"
	CategoryOther     Category = "other"
)

// AllCategories lists the known categories
var AllCategories = []Category{
	CategoryComponent,
	CategoryPattern,
	CategoryToken,
	CategoryIcon,
	CategoryLayout,
	CategoryUtility,
	CategoryOther,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// RequestMetadata holds review and planning details
type RequestMetadata struct {
	EstimatedEffort      string     `json:"estimatedEffort,omitempty"`
	DesignReview         bool       `json:"designReview"`
	TechnicalReview      bool       `json:"technicalReview"`
	DesignApproved       bool       `json:"designApproved"`
	TechnicalApproved    bool       `json:"technicalApproved"`
	RoadmapItemID        string     `json:"roadmapItemId,omitempty"`
	RoadmapItemCreatedAt *time.Time `json:"roadmapItemCreatedAt,omitempty"`
	TargetRelease        string     `json:"targetRelease,omitempty"`
}

// ComponentRequest is a proposal for a new design-system component
type ComponentRequest struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	UseCase     string          `json:"useCase,omitempty"`
	RequestedBy string          `json:"requestedBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Status      RequestStatus   `json:"status"`
	Votes       int             `json:"votes"`
	Voters      []string        `json:"voters"`
	Category    Category        `json:"category"`
	Priority    Priority        `json:"priority"`
	AssignedTo  string          `json:"assignedTo,omitempty"`
	Comments    []string        `json:"comments"`
	ComponentID string          `json:"componentId,omitempty"`
	Metadata    RequestMetadata `json:"metadata"`
	Attachments []string        `json:"attachments,omitempty"`
}

// HasVoted reports whether userID is among the voters
func (r *ComponentRequest) HasVoted(userID string) bool {
	for _, v := range r.Voters {
		if v == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with the store
func (r *ComponentRequest) Clone() *ComponentRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Voters = append([]string(nil), r.Voters...)
	c.Comments = append([]string(nil), r.Comments...)
	if r.Attachments != nil {
		c.Attachments = append([]string(nil), r.Attachments...)
	}
	if r.Metadata.RoadmapItemCreatedAt != nil {
		t := *r.Metadata.RoadmapItemCreatedAt
		c.Metadata.RoadmapItemCreatedAt = &t
	}
	return &c
}
