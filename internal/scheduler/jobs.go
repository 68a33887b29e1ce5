// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/province-cms/internal/audit"
	"github.com/olegiv/province-cms/internal/geoip"
	"github.com/olegiv/province-cms/internal/middleware"
	"github.com/olegiv/province-cms/internal/ratelimit"
	"github.com/olegiv/province-cms/internal/resource"
	"github.com/olegiv/province-cms/internal/service"
	"github.com/olegiv/province-cms/internal/store"
)

// Maintenance holds what the housekeeping jobs operate on. Nil fields and
// zero retentions disable the matching job.
type Maintenance struct {
	Audit            *audit.Service
	AuditRetention   time.Duration
	Queries          *store.Queries
	Resources        *service.ResourceService
	DeletedRetention time.Duration
	LoginStore       *ratelimit.MemoryStore
	APILimiter       *middleware.GlobalRateLimiter
	GeoIP            *geoip.Lookup
	Now              func() time.Time
}

// Jobs returns the enabled maintenance jobs.
func (m Maintenance) Jobs() []Job {
	now := m.Now
	if now == nil {
		now = time.Now
	}

	var jobs []Job
	if m.Audit != nil && m.AuditRetention > 0 {
		jobs = append(jobs, Job{
			Name:        "audit-retention",
			Description: "Delete audit entries past the retention period",
			Schedule:    "@daily",
			Run: func(ctx context.Context) error {
				n, err := m.Audit.Prune(ctx, m.AuditRetention)
				if err != nil {
					return err
				}
				if n > 0 {
					slog.InfoContext(ctx, "pruned audit log", "deleted", n)
				}
				return nil
			},
		})
	}
	if m.Queries != nil {
		jobs = append(jobs, Job{
			Name:        "clear-expired-locks",
			Description: "Reset failed login counters on accounts whose lock has expired",
			Schedule:    "*/5 * * * *",
			Run: func(ctx context.Context) error {
				n, err := m.Queries.ClearExpiredLocks(ctx, now().UTC())
				if err != nil {
					return err
				}
				if n > 0 {
					slog.InfoContext(ctx, "cleared expired account locks", "accounts", n)
				}
				return nil
			},
		})
	}
	if m.LoginStore != nil {
		jobs = append(jobs, Job{
			Name:        "login-limiter-sweep",
			Description: "Drop expired login attempt windows",
			Schedule:    "*/10 * * * *",
			Run: func(context.Context) error {
				m.LoginStore.Sweep()
				return nil
			},
		})
	}
	if m.APILimiter != nil {
		jobs = append(jobs, Job{
			Name:        "api-limiter-sweep",
			Description: "Bound the per-IP API rate limiter state",
			Schedule:    "*/10 * * * *",
			Run: func(context.Context) error {
				m.APILimiter.Sweep()
				return nil
			},
		})
	}
	if m.Resources != nil && m.DeletedRetention > 0 {
		jobs = append(jobs, Job{
			Name:        "purge-deleted",
			Description: "Permanently remove soft-deleted records past the retention period",
			Schedule:    "@daily",
			Run: func(ctx context.Context) error {
				_, err := m.Resources.PurgeDeleted(ctx, resource.Registry, m.DeletedRetention)
				return err
			},
		})
	}
	if m.GeoIP != nil && m.GeoIP.Enabled() {
		jobs = append(jobs, Job{
			Name:        "geoip-reload",
			Description: "Reopen the GeoIP database to pick up updates",
			Schedule:    "@weekly",
			Run: func(context.Context) error {
				return m.GeoIP.Reload()
			},
		})
	}
	return jobs
}

// Register adds every job in jobs to s.
func (s *Scheduler) Register(jobs []Job) error {
	for _, j := range jobs {
		if err := s.Add(j); err != nil {
			return err
		}
	}
	return nil
}
