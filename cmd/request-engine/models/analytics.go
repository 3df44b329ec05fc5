package models

// RequestAnalytics summarises the request set and its status history.
// Average durations are in milliseconds.
type RequestAnalytics struct {
	TotalRequests           int                   `json:"totalRequests"`
	ByStatus                map[RequestStatus]int `json:"byStatus"`
	ByPriority              map[Priority]int      `json:"byPriority"`
	ByCategory              map[Category]int      `json:"byCategory"`
	AverageTimeToApproval   float64               `json:"averageTimeToApproval"`
	AverageTimeToCompletion float64               `json:"averageTimeToCompletion"`
	FulfillmentRate         float64               `json:"fulfillmentRate"`
	TopRequesters           []RequesterCount      `json:"topRequesters"`
	RequestsOverTime        []DailyCount          `json:"requestsOverTime"`
}

// RequesterCount is one row of the top-requesters table
type RequesterCount struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

// DailyCount is the number of requests created on Date (YYYY-MM-DD, UTC)
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// SimilarRequest is one duplicate candidate. Similarity is 0-100.
type SimilarRequest struct {
	Request    *ComponentRequest `json:"request"`
	Similarity int               `json:"similarity"`
}

// DuplicateCheckResult is returned by the duplicate detector
type DuplicateCheckResult struct {
	IsDuplicate bool             `json:"isDuplicate"`
	Similar     []SimilarRequest `json:"similar"`
}

// ApprovalStage names a checkpoint in the sign-off sequence
type ApprovalStage string

const (
	StageDesign    ApprovalStage = "design"
	StageTechnical ApprovalStage = "technical"
	StageFinal     ApprovalStage = "final"
)

// StageProgress reports one stage of a request's approval
type StageProgress struct {
	Stage    ApprovalStage `json:"stage"`
	Role     string        `json:"role"`
	Approved bool          `json:"approved"`
}

// ComponentCreatedEvent is emitted by the component lifecycle when a component is created
type ComponentCreatedEvent struct {
	ComponentID     string `json:"componentId"`
	ComponentName   string `json:"componentName"`
	LinkedRequestID string `json:"linkedRequestId,omitempty"`
}
