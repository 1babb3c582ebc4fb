package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// ArchiveJob moves old audit entries and closed positions to cold storage.
type ArchiveJob struct {
	archiver      domain.Archiver
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// NewArchiveJob creates an ArchiveJob.
func NewArchiveJob(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *ArchiveJob {
	return &ArchiveJob{
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
		now:           time.Now,
	}
}

// RunOnce archives everything older than the retention window.
func (a *ArchiveJob) RunOnce(ctx context.Context) error {
	cutoff := a.now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "archiver: run started",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	audit, err := a.archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving audit before %v: %w", cutoff, err)
	}
	positions, err := a.archiver.ArchivePositions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving positions before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archiver: run complete",
		slog.Int64("audit_archived", audit),
		slog.Int64("positions_archived", positions),
	)
	return nil
}

// Run calls RunOnce every interval until ctx is cancelled. Failed runs are
// logged and retried on the next interval.
func (a *ArchiveJob) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archiver: run failed", slog.String("error", err.Error()))
			}
		}
	}
}
