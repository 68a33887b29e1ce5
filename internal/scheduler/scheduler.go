// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// Job is a named periodic task.
type Job struct {
	Name        string
	Description string
	Schedule    string // standard five-field cron expression or descriptor
	Run         func(ctx context.Context) error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	LastError   string
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID
	lastErr error
}

// Scheduler owns a cron instance and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

// New creates a scheduler. Overlapping runs of the same job are skipped.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: DefaultJobTimeout,
		jobs:    make(map[string]*registeredJob),
	}
}

// Add registers job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job already registered: %s", job.Name)
	}
	rj := &registeredJob{job: job}
	id, err := s.cron.AddFunc(job.Schedule, func() { s.run(context.Background(), rj) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for %s: %w", job.Schedule, job.Name, err)
	}
	rj.entryID = id
	s.jobs[job.Name] = rj

	s.logger.Debug("registered scheduled job", "name", job.Name, "schedule", job.Schedule)
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Trigger runs the named job immediately and returns its error.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}

	s.logger.Info("manually triggering job", "name", name)
	return s.run(ctx, rj)
}

// Jobs returns every registered job sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, rj := range s.jobs {
		entry := s.cron.Entry(rj.entryID)
		info := JobInfo{
			Name:        rj.job.Name,
			Description: rj.job.Description,
			Schedule:    rj.job.Schedule,
			LastRun:     entry.Prev,
			NextRun:     entry.Next,
		}
		if rj.lastErr != nil {
			info.LastError = rj.lastErr.Error()
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func (s *Scheduler) run(ctx context.Context, rj *registeredJob) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := rj.job.Run(ctx)

	s.mu.Lock()
	rj.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "name", rj.job.Name, "error", err)
		return err
	}
	s.logger.Debug("scheduled job finished", "name", rj.job.Name, "duration", time.Since(start))
	return nil
}
