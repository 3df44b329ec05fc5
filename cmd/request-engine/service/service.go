package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/repository"
	"github.com/adamstavely/cautious-lamp-sub001/common/clients"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
)

const defaultRoadmapTimeout = 10 * time.Second

// RoadmapService creates roadmap items for approved requests
type RoadmapService interface {
	CreateRoadmapItem(ctx context.Context, input clients.RoadmapItemInput) (*clients.RoadmapItem, error)
}

// RequestService is the component request lifecycle engine
type RequestService struct {
	store    *repository.Store
	requests repository.RequestRepository
	comments repository.CommentRepository
	history  repository.HistoryRepository
	roadmap  RoadmapService
	logger   *logger.Logger
	filters  *FilterEvaluator
	locks    *keyedMutex

	roadmapTimeout time.Duration
	background     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// RequestServiceOpts contains options for creating a RequestService
type RequestServiceOpts struct {
	Store          *repository.Store
	Roadmap        RoadmapService
	Logger         *logger.Logger
	RoadmapTimeout time.Duration
}

// NewRequestService creates a new request service with options pattern
func NewRequestService(opts *RequestServiceOpts) *RequestService {
	timeout := opts.RoadmapTimeout
	if timeout <= 0 {
		timeout = defaultRoadmapTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &RequestService{
		store:          opts.Store,
		requests:       opts.Store.Requests,
		comments:       opts.Store.Comments,
		history:        opts.Store.History,
		roadmap:        opts.Roadmap,
		logger:         log,
		filters:        NewFilterEvaluator(),
		locks:          newKeyedMutex(),
		roadmapTimeout: timeout,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

// Wait blocks until background roadmap calls have finished
func (s *RequestService) Wait() {
	s.background.Wait()
}
