package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carrotreset/internal/carrots/model"
	"carrotreset/internal/carrots/repository"
)

// BatchOpsThreshold triggers a commit. It stays below repository.MaxBatchOps.
const BatchOpsThreshold = 450

var ErrStoreOperation = errors.New("store operation failed")

type Options struct {
	PageSize int
	DryRun   bool
}

type ResetService struct {
	Repo     repository.UserRepository
	Options  Options
	Reporter Reporter
	Now      func() time.Time
}

func NewResetService(repo repository.UserRepository, opts Options, logger *slog.Logger) *ResetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetService{
		Repo:     repo,
		Options:  opts,
		Reporter: Reporter{Logger: logger},
		Now:      time.Now,
	}
}

// Run scans every user once and resets the eligible ones. On failure the
// report holds whatever was counted before the error.
func (s *ResetService) Run(ctx context.Context) (Report, error) {
	report := Report{DryRun: s.Options.DryRun}
	started := s.Now()
	s.Reporter.Starting(s.Options.DryRun, s.Options.PageSize)

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return s.fail(report, started, err)
		}

		page, err := s.Repo.ListUsersAfter(ctx, cursor, s.Options.PageSize)
		report.Pages++
		if err != nil {
			return s.fail(report, started, fmt.Errorf("%w: list users after %q: %w", ErrStoreOperation, cursor, err))
		}
		if len(page) == 0 {
			break
		}

		plan := PlanPage(page, s.Options.DryRun)
		cursor = plan.NextCursor
		report.Scanned += plan.Scanned
		report.Eligible += plan.Eligible

		if err := s.applyResets(ctx, plan.Resets, &report); err != nil {
			return s.fail(report, started, err)
		}
		s.Reporter.Progress(report)
	}

	report.Elapsed = s.Now().Sub(started)
	s.Reporter.Done(report)
	return report, nil
}

// applyResets commits resets in batches of at most BatchOpsThreshold operations.
func (s *ResetService) applyResets(ctx context.Context, resets []model.Reset, report *Report) error {
	var pending []model.Reset
	for _, reset := range resets {
		pending = append(pending, reset)
		report.Updated++
		if len(pending)*model.OpsPerReset >= BatchOpsThreshold {
			if err := s.commit(ctx, pending, report); err != nil {
				return err
			}
			pending = nil
		}
	}
	if len(pending) > 0 {
		return s.commit(ctx, pending, report)
	}
	return nil
}

func (s *ResetService) commit(ctx context.Context, batch []model.Reset, report *Report) error {
	if err := s.Repo.CommitResets(ctx, batch); err != nil {
		return fmt.Errorf("%w: commit %d resets: %w", ErrStoreOperation, len(batch), err)
	}
	report.Batches++
	return nil
}

func (s *ResetService) fail(report Report, started time.Time, err error) (Report, error) {
	report.Elapsed = s.Now().Sub(started)
	s.Reporter.Aborted(report)
	return report, err
}
