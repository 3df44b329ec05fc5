package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

const (
	titleWeight       = 0.7
	descriptionWeight = 0.3

	// candidates scoring below this are not reported
	similarityThreshold = 0.70
	// reported similarity at or above which the top candidate counts as a duplicate
	duplicateSimilarity = 90

	// a title contained in the other counts as near-identical once it covers this share of it
	containmentMinRatio = 0.75
)

// CheckForDuplicates scores every stored request against the candidate title and description.
// An empty description scores on the title alone.
func (s *RequestService) CheckForDuplicates(ctx context.Context, title, description string) (*models.DuplicateCheckResult, error) {
	existing, err := s.requests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	result := FindDuplicates(title, description, existing)
	recordDuplicateCheck(result)
	return result, nil
}

// FindDuplicates is the pure scoring behind CheckForDuplicates
func FindDuplicates(title, description string, existing []*models.ComponentRequest) *models.DuplicateCheckResult {
	similar := make([]models.SimilarRequest, 0)

	for _, req := range existing {
		score := titleSimilarity(title, req.Title)
		if description != "" {
			score = titleWeight*score + descriptionWeight*similarity(description, req.Description)
		}
		if score < similarityThreshold {
			continue
		}
		similar = append(similar, models.SimilarRequest{
			Request:    req,
			Similarity: int(math.Round(score * 100)),
		})
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Similarity > similar[j].Similarity
	})

	return &models.DuplicateCheckResult{
		IsDuplicate: len(similar) > 0 && similar[0].Similarity >= duplicateSimilarity,
		Similar:     similar,
	}
}

// similarity is the case-insensitive normalised edit-distance similarity in [0, 1]
func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1.0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return float64(longest-dist) / float64(longest)
}

// titleSimilarity lifts the edit-distance score when one title contains most of the
// other, e.g. "Data Table Comp" against "Data Table Component".
func titleSimilarity(a, b string) float64 {
	sim := similarity(a, b)

	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if shorter == "" || !strings.Contains(longer, shorter) {
		return sim
	}

	ratio := float64(utf8.RuneCountInString(shorter)) / float64(utf8.RuneCountInString(longer))
	if ratio < containmentMinRatio {
		return sim
	}
	return math.Max(sim, 0.9+0.1*ratio)
}
