package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/dims"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/graphdef"
	"github.com/ritzau/graph-analyzer/pkg/lens"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/pubsub"
)

const totalSteps = 3

// Runner analyzes one model file, possibly many times, and keeps the latest result
type Runner struct {
	path      string
	opts      Options
	memo      *dims.Memo
	publisher pubsub.Publisher // may be nil

	mu sync.Mutex // Prevent concurrent analysis runs

	latestMu sync.RWMutex
	report   *Report
	index    *graph.Index
	snapshot *lens.GraphSnapshot
}

// NewRunner creates a runner for the model at path. Dimensions entered through provider are
// remembered across runs. The publisher may be nil.
func NewRunner(path string, opts Options, provider dims.InputProvider, publisher pubsub.Publisher) *Runner {
	return &Runner{
		path:      path,
		opts:      opts,
		memo:      dims.NewMemo(provider),
		publisher: publisher,
	}
}

// Run reads the model file and analyzes it.
// reason is logged, e.g. "initial analysis" or "model changed".
func (r *Runner) Run(ctx context.Context, reason string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = logging.WithRunID(ctx, uuid.NewString())
	logging.InfoContext(ctx, "starting analysis", "reason", reason, "path", r.path, "target", string(r.opts.Target))

	r.publishStatus(ctx, "loading", fmt.Sprintf("Reading %s...", r.path), 1)
	g, err := graphdef.ReadFile(r.path)
	if err != nil {
		return nil, r.failed(ctx, err)
	}
	logging.DebugContext(ctx, "model loaded", "nodes", g.Len())

	r.publishStatus(ctx, "analyzing", fmt.Sprintf("Analyzing %d nodes...", g.Len()), 2)
	report, idx, err := Analyze(ctx, g, r.opts, r.memo)
	if err != nil {
		r.memo.Discard()
		return nil, r.failed(ctx, err)
	}
	r.memo.Commit()
	report.Source = r.path

	data := lens.FromIndex(idx)
	r.latestMu.Lock()
	if r.snapshot != nil {
		report.Changes = lens.ComputeDiff(r.snapshot, data)
		logging.InfoContext(ctx, "graph changes",
			"added", len(report.Changes.AddedNodes),
			"removed", len(report.Changes.RemovedNodes),
			"modified", len(report.Changes.ModifiedNodes))
	}
	r.report, r.index, r.snapshot = report, idx, lens.CreateSnapshot(data)
	r.latestMu.Unlock()

	r.publishStatus(ctx, "ready", "Analysis complete", totalSteps)
	r.publish(ctx, pubsub.TopicReport, "ready", pubsub.ReportSummary{
		RunID:       report.RunID,
		Source:      report.Source,
		Target:      string(report.Target),
		Nodes:       report.NodeCount,
		Diagnostics: len(report.Diagnostics),
		HasErrors:   report.HasErrors(),
	})
	logging.InfoContext(ctx, "analysis finished", "reason", reason)
	return report, nil
}

// Latest returns the result of the last successful run, nil before the first one
func (r *Runner) Latest() (*Report, *graph.Index) {
	r.latestMu.RLock()
	defer r.latestMu.RUnlock()
	return r.report, r.index
}

// Path returns the analyzed model file
func (r *Runner) Path() string {
	return r.path
}

func (r *Runner) failed(ctx context.Context, err error) error {
	err = errors.WithMessagef(err, "analyzing %s", r.path)
	logging.ErrorContext(ctx, "analysis failed", "error", err)
	r.publishStatus(ctx, "failed", err.Error(), totalSteps)
	return err
}

func (r *Runner) publishStatus(ctx context.Context, state, message string, step int) {
	r.publish(ctx, pubsub.TopicAnalysisStatus, state, pubsub.AnalysisStatus{
		RunID:   logging.GetRunID(ctx),
		State:   state,
		Message: message,
		Step:    step,
		Total:   totalSteps,
	})
}

func (r *Runner) publish(ctx context.Context, topic, eventType string, data interface{}) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(topic, eventType, data); err != nil {
		logging.WarnContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}
