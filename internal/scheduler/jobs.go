package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/orchestrator"
	"etf-chunk-lab/internal/reporting"
)

// BacktestJob re-runs a head-to-head backtest and optionally writes its report.
type BacktestJob struct {
	orch      *orchestrator.Orchestrator
	request   func(ctx context.Context) (orchestrator.Request, error)
	outputDir string
	reports   *reporting.Generator
	log       zerolog.Logger

	mu   sync.Mutex
	last *domain.Comparison
}

// NewBacktestJob creates a job that builds its request on every run, so
// freshly ingested bars are picked up. An empty outputDir skips report files.
func NewBacktestJob(
	orch *orchestrator.Orchestrator,
	request func(ctx context.Context) (orchestrator.Request, error),
	outputDir string,
	log zerolog.Logger,
) *BacktestJob {
	return &BacktestJob{
		orch:      orch,
		request:   request,
		outputDir: outputDir,
		reports:   reporting.NewGenerator(nil, nil, nil),
		log:       log.With().Str("job", "backtest").Logger(),
	}
}

// Name implements Job.
func (j *BacktestJob) Name() string { return "backtest" }

// Run implements Job.
func (j *BacktestJob) Run(ctx context.Context) error {
	req, err := j.request(ctx)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	cmp, err := j.orch.Run(ctx, req)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.last = cmp
	j.mu.Unlock()

	if j.outputDir == "" {
		return nil
	}
	files, err := reporting.WriteFiles(j.outputDir, j.reports.FromResults(cmp.Global, cmp.Chunk))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	j.log.Info().Int("files", len(files)).Str("dir", j.outputDir).Msg("report written")
	return nil
}

// Last returns the most recent comparison, or nil before the first run.
func (j *BacktestJob) Last() *domain.Comparison {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
