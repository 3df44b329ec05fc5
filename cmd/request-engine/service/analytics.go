package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

const (
	topRequesterLimit = 10
	trailingDays      = 30
	dayLayout         = "2006-01-02"
)

// GetRequestAnalytics summarises every stored request and its status history
func (s *RequestService) GetRequestAnalytics(ctx context.Context) (*models.RequestAnalytics, error) {
	requests, err := s.requests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	histories := make(map[string][]models.StatusHistoryEntry, len(requests))
	for _, req := range requests {
		entries, err := s.history.Get(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get status history for %s: %w", req.ID, err)
		}
		histories[req.ID] = entries
	}

	return Aggregate(requests, histories, s.now()), nil
}

// Aggregate computes analytics over requests. histories is keyed by request id.
// Days are calendar days in UTC, the last one being the day of now.
func Aggregate(requests []*models.ComponentRequest, histories map[string][]models.StatusHistoryEntry, now time.Time) *models.RequestAnalytics {
	out := &models.RequestAnalytics{
		TotalRequests: len(requests),
		ByStatus:      make(map[models.RequestStatus]int, len(models.AllStatuses)),
		ByPriority:    make(map[models.Priority]int, len(models.AllPriorities)),
		ByCategory:    make(map[models.Category]int, len(models.AllCategories)),
	}
	for _, st := range models.AllStatuses {
		out.ByStatus[st] = 0
	}
	for _, p := range models.AllPriorities {
		out.ByPriority[p] = 0
	}
	for _, c := range models.AllCategories {
		out.ByCategory[c] = 0
	}

	var (
		approvalTotal, completionTotal time.Duration
		approvalCount, completionCount int
		fulfilled                      int
		perRequester                   = make(map[string]int)
		requesterOrder                 []string
		perDay                         = make(map[string]int)
	)

	for _, req := range requests {
		out.ByStatus[req.Status]++
		out.ByPriority[req.Priority]++
		out.ByCategory[req.Category]++

		if pastApproval(req.Status) {
			fulfilled++
		}

		if _, seen := perRequester[req.RequestedBy]; !seen {
			requesterOrder = append(requesterOrder, req.RequestedBy)
		}
		perRequester[req.RequestedBy]++

		perDay[req.CreatedAt.UTC().Format(dayLayout)]++

		if at, ok := firstEntry(histories[req.ID], models.StatusApproved); ok {
			approvalTotal += at.Sub(req.CreatedAt)
			approvalCount++
		}
		if at, ok := firstEntry(histories[req.ID], models.StatusCompleted, models.StatusReleased); ok {
			completionTotal += at.Sub(req.CreatedAt)
			completionCount++
		}
	}

	out.AverageTimeToApproval = averageMillis(approvalTotal, approvalCount)
	out.AverageTimeToCompletion = averageMillis(completionTotal, completionCount)
	if out.TotalRequests > 0 {
		out.FulfillmentRate = float64(fulfilled) / float64(out.TotalRequests) * 100
	}

	out.TopRequesters = topRequesters(requesterOrder, perRequester)

	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	out.RequestsOverTime = make([]models.DailyCount, 0, trailingDays)
	for i := trailingDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dayLayout)
		out.RequestsOverTime = append(out.RequestsOverTime, models.DailyCount{Date: day, Count: perDay[day]})
	}

	return out
}

// firstEntry returns the timestamp of the earliest history entry with any of statuses
func firstEntry(entries []models.StatusHistoryEntry, statuses ...models.RequestStatus) (time.Time, bool) {
	for _, e := range entries {
		if containsValue(statuses, e.Status) {
			return e.Timestamp, true
		}
	}
	return time.Time{}, false
}

func averageMillis(total time.Duration, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(n)
}

func topRequesters(order []string, counts map[string]int) []models.RequesterCount {
	out := make([]models.RequesterCount, 0, len(order))
	for _, userID := range order {
		out = append(out, models.RequesterCount{UserID: userID, Count: counts[userID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > topRequesterLimit {
		out = out[:topRequesterLimit]
	}
	return out
}
