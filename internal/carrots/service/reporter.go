package service

import (
	"log/slog"
	"time"
)

// Report accumulates the counters of one run.
type Report struct {
	Scanned  int
	Eligible int
	Updated  int
	Pages    int // fetches, including the final empty one
	Batches  int // commits
	DryRun   bool
	Elapsed  time.Duration
}

func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("scanned", r.Scanned),
		slog.Int("eligible", r.Eligible),
		slog.Int("updated", r.Updated),
		slog.Int("pages", r.Pages),
		slog.Int("batches", r.Batches),
		slog.Bool("dryRun", r.DryRun),
	)
}

// Reporter writes progress and summary lines. It only ever sees counters.
type Reporter struct {
	Logger *slog.Logger
}

func (r Reporter) Starting(dryRun bool, pageSize int) {
	r.Logger.Info("Weekly carrot reset starting", "dryRun", dryRun, "pageSize", pageSize)
}

func (r Reporter) Progress(report Report) {
	r.Logger.Info("Progress",
		"scanned", report.Scanned,
		"eligible", report.Eligible,
		"updated", report.Updated,
	)
}

func (r Reporter) Done(report Report) {
	r.Logger.Info("Done",
		"scanned", report.Scanned,
		"eligible", report.Eligible,
		"updated", report.Updated,
		"dryRun", report.DryRun,
		"batches", report.Batches,
		"elapsed", report.Elapsed.String(),
	)
}

func (r Reporter) Aborted(report Report) {
	r.Logger.Warn("Weekly carrot reset aborted", "report", report)
}
