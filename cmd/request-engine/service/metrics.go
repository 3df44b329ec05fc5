package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component_requests",
		Subsystem: "workflow",
		Name:      "transitions_total",
		Help:      "Committed status transitions broken down by source and target state.",
	}, []string{"from", "to"})

	transitionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component_requests",
		Subsystem: "workflow",
		Name:      "invalid_transitions_total",
		Help:      "Status transitions refused by the state machine.",
	}, []string{"from", "to"})

	roadmapItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component_requests",
		Subsystem: "roadmap",
		Name:      "items_total",
		Help:      "Roadmap item creations triggered by approvals, by result.",
	}, []string{"result"})

	autoLinks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component_requests",
		Subsystem: "autolink",
		Name:      "events_total",
		Help:      "Component-created events handled by the auto-linker, by outcome.",
	}, []string{"outcome"})

	duplicateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component_requests",
		Subsystem: "duplicates",
		Name:      "checks_total",
		Help:      "Duplicate checks, by outcome.",
	}, []string{"outcome"})
)

func recordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

func recordInvalidTransition(from, to string) {
	transitionRejections.WithLabelValues(from, to).Inc()
}

func recordRoadmapItem(ok bool) {
	result := "error"
	if ok {
		result = "created"
	}
	roadmapItems.WithLabelValues(result).Inc()
}

func recordAutoLink(outcome string) {
	autoLinks.WithLabelValues(outcome).Inc()
}

func recordDuplicateCheck(result *models.DuplicateCheckResult) {
	outcome := "none"
	switch {
	case result.IsDuplicate:
		outcome = "duplicate"
	case len(result.Similar) > 0:
		outcome = "similar"
	}
	duplicateChecks.WithLabelValues(outcome).Inc()
}
