package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RoadmapItemInput is the payload for creating a roadmap item
type RoadmapItemInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	TargetDate  string `json:"targetDate,omitempty"`
}

// RoadmapItem is the collaborator's response; only the id matters to callers
type RoadmapItem struct {
	ID string `json:"id"`
}

// RoadmapClient talks to the roadmap service over HTTP
type RoadmapClient struct {
	baseURL string
	http    *HTTPClient
	logger  Logger
}

// NewRoadmapClient creates a new roadmap client
func NewRoadmapClient(baseURL string, timeout time.Duration, logger Logger) *RoadmapClient {
	httpClient := &http.Client{
		Timeout: timeout,
	}

	return &RoadmapClient{
		baseURL: baseURL,
		http:    NewHTTPClient(httpClient, logger),
		logger:  logger,
	}
}

// CreateRoadmapItem creates a roadmap item and returns its id
// POST {baseURL}/api/v1/roadmap/items
func (c *RoadmapClient) CreateRoadmapItem(ctx context.Context, input RoadmapItemInput) (*RoadmapItem, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal roadmap item: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/roadmap/items", c.baseURL)
	resp, err := c.http.DoRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create roadmap item: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("roadmap request failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var item RoadmapItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode roadmap response: %w", err)
	}
	if item.ID == "" {
		return nil, fmt.Errorf("roadmap response missing id")
	}

	c.logger.Info("roadmap item created", "roadmap_item_id", item.ID, "title", input.Title)
	return &item, nil
}

// LogOnlyRoadmap is used when no roadmap service is configured.
// It logs the item and hands back a locally generated id.
type LogOnlyRoadmap struct {
	logger Logger
	newID  func() string
}

// NewLogOnlyRoadmap creates a roadmap stand-in that only logs
func NewLogOnlyRoadmap(logger Logger, newID func() string) *LogOnlyRoadmap {
	return &LogOnlyRoadmap{logger: logger, newID: newID}
}

// CreateRoadmapItem logs the item
func (r *LogOnlyRoadmap) CreateRoadmapItem(ctx context.Context, input RoadmapItemInput) (*RoadmapItem, error) {
	id := r.newID()
	r.logger.Info("roadmap service not configured, item logged only",
		"roadmap_item_id", id,
		"title", input.Title,
		"priority", input.Priority)
	return &RoadmapItem{ID: id}, nil
}
