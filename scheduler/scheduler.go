// Package scheduler runs recurring jobs for cosmos and its plugins.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/intrntsrfr/cosmos/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job describes a scheduled job.
type Job struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev"`
}

type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	mu      sync.Mutex
	started bool
	jobs    map[string]Job
	entries map[string]cron.EntryID
}

func New(log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		return nil, errors.New("scheduler: logger is required")
	}
	log = log.Named("scheduler")
	cl := logger.NewCron(log)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		log:     log,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	s.log.Info("scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Add schedules fn under a cron expression or descriptor such as
// "@every 15s" and returns the job ID.
func (s *Scheduler) Add(name, schedule string, fn func()) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug("running job", zap.String("job", name), zap.String("id", id))
		fn()
	})
	if err != nil {
		return "", fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.jobs[id] = Job{ID: id, Name: name, Schedule: schedule}
	s.entries[id] = entryID
	s.log.Info("job added", zap.String("job", name), zap.String("schedule", schedule))
	return id, nil
}

func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	s.cron.Remove(entryID)
	delete(s.entries, id)
	delete(s.jobs, id)
	return nil
}

// Jobs lists scheduled jobs ordered by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for id, j := range s.jobs {
		e := s.cron.Entry(s.entries[id])
		j.Next, j.Prev = e.Next, e.Prev
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Name == out[k].Name {
			return out[i].ID < out[k].ID
		}
		return out[i].Name < out[k].Name
	})
	return out
}
