package models

import "time"

// RequestComment is a discussion entry on a request
type RequestComment struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"requestId"`
	Author      string    `json:"author"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	Mentions    []string  `json:"mentions"`
	Attachments []string  `json:"attachments,omitempty"`
}

// StatusHistoryEntry is an immutable audit record of one status change
type StatusHistoryEntry struct {
	Status    RequestStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"userId"`
	Comment   string        `json:"comment,omitempty"`
}
