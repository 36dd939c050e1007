package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobPayrollBatch = "payroll_batch"

	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const defaultRetention = 1000

var (
	ErrQueueFull   = errors.New("job queue full")
	ErrRunNotFound = errors.New("job run not found")
)

// Run is the externally visible record of one job.
type Run struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	OrganizationID string     `json:"organizationId,omitempty"`
	Status         string     `json:"status"`
	SubmittedAt    time.Time  `json:"submittedAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	Details        any        `json:"details,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Observer is notified about queue depth and finished runs.
type Observer interface {
	RunFinished(status string)
	SetQueueDepth(n int)
}

type nopObserver struct{}

func (nopObserver) RunFinished(string) {}
func (nopObserver) SetQueueDepth(int)  {}

type Service struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	finished  []string
	retention int
	queue     chan job
	workers   int
	observer  Observer
	logger    *slog.Logger
	wg        sync.WaitGroup
}

type job struct {
	RunID string
	Run   func(context.Context) (any, error)
}

type Option func(*Service)

// WithRetention caps how many finished runs stay queryable. The oldest
// finished runs are forgotten first; queued and running runs are never
// evicted.
func WithRetention(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retention = n
		}
	}
}

func New(queueSize, workers int, observer Observer, logger *slog.Logger, opts ...Option) *Service {
	if queueSize <= 0 {
		queueSize = 128
	}
	if workers <= 0 {
		workers = 1
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		runs:      map[string]*Run{},
		retention: defaultRetention,
		queue:     make(chan job, queueSize),
		workers:   workers,
		observer:  observer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the workers. They stop when ctx is cancelled; Wait blocks
// until they have returned.
func (s *Service) Start(ctx context.Context) {
	for range s.workers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx)
		}()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// Enqueue registers a run and queues it. The run is recorded as failed when
// the queue is full.
func (s *Service) Enqueue(jobType, organizationID string, run func(context.Context) (any, error)) (Run, error) {
	record := s.register(jobType, organizationID)
	select {
	case s.queue <- job{RunID: record.ID, Run: run}:
		s.observer.SetQueueDepth(len(s.queue))
		return record, nil
	default:
		s.logger.Warn("job queue full", "jobType", jobType, "organizationId", organizationID)
		s.finish(record.ID, nil, ErrQueueFull)
		return s.mustGet(record.ID), ErrQueueFull
	}
}

// RunNow executes run synchronously while still recording it.
func (s *Service) RunNow(ctx context.Context, jobType, organizationID string, run func(context.Context) (any, error)) (Run, error) {
	record := s.register(jobType, organizationID)
	_, err := s.runJob(ctx, job{RunID: record.ID, Run: run})
	return s.mustGet(record.ID), err
}

func (s *Service) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return *run, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			s.observer.SetQueueDepth(len(s.queue))
			if _, err := s.runJob(ctx, j); err != nil {
				s.logger.Warn("job run failed", "runId", j.RunID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (details any, err error) {
	s.mu.Lock()
	if run, ok := s.runs[j.RunID]; ok {
		now := time.Now().UTC()
		run.Status = StatusRunning
		run.StartedAt = &now
	}
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		s.finish(j.RunID, details, err)
	}()
	return j.Run(ctx)
}

func (s *Service) register(jobType, organizationID string) Run {
	run := &Run{
		ID:             uuid.NewString(),
		Type:           jobType,
		OrganizationID: organizationID,
		Status:         StatusQueued,
		SubmittedAt:    time.Now().UTC(),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return *run
}

func (s *Service) finish(id string, details any, err error) {
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	s.observer.RunFinished(status)
	now := time.Now().UTC()
	s.mu.Lock()
	if run, ok := s.runs[id]; ok {
		run.Status = status
		run.CompletedAt = &now
		run.Details = details
		if err != nil {
			run.Error = err.Error()
		}
		s.finished = append(s.finished, id)
		s.evictLocked()
	}
	s.mu.Unlock()
}

// evictLocked drops the oldest finished runs beyond the retention limit.
func (s *Service) evictLocked() {
	excess := len(s.finished) - s.retention
	if excess <= 0 {
		return
	}
	for _, id := range s.finished[:excess] {
		delete(s.runs, id)
	}
	s.finished = slices.Delete(s.finished, 0, excess)
}

func (s *Service) mustGet(id string) Run {
	run, _ := s.Get(id)
	return run
}
