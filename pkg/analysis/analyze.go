// Package analysis runs the graph extractors a converter target needs and collects their results in a Report.
package analysis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/cycles"
	"github.com/ritzau/graph-analyzer/pkg/dims"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/heuristics"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"github.com/ritzau/graph-analyzer/pkg/search"
)

// ErrUnknownFamily is returned for a family name nobody registered
var ErrUnknownFamily = errors.New("unknown model family")

// Options configures which facts are extracted and how
type Options struct {
	Target       Target
	Family       string
	DeclaredDims []int // nil when the caller declared nothing
	Stats        heuristics.QuantStats
	SearchBudget int
	TrackVisited bool
}

// DefaultOptions analyzes everything with the built-in family
func DefaultOptions() Options {
	return Options{
		Target:       TargetAll,
		Family:       heuristics.DefaultFamily,
		Stats:        heuristics.DefaultQuantStats,
		SearchBudget: search.DefaultBudget,
	}
}

func (o Options) searchOptions() []search.Option {
	opts := []search.Option{search.WithBudget(o.SearchBudget)}
	if o.TrackVisited {
		opts = append(opts, search.WithVisitedTracking())
	}
	return opts
}

// Analyze indexes g and extracts the facts opts.Target needs.
//
// Structural errors and dimension validation errors are always returned. A missing class count is an
// error for tensorrt; with TargetAll every extractor failure becomes a diagnostic instead.
func Analyze(ctx context.Context, g *model.Graph, opts Options, provider dims.InputProvider) (*Report, *graph.Index, error) {
	fam, ok := heuristics.Lookup(opts.Family)
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnknownFamily, "%q, registered: %v", opts.Family, heuristics.Families())
	}

	idx, err := graph.Build(g)
	if err != nil {
		return nil, nil, err
	}
	debugIndex(ctx, idx)

	report := &Report{
		RunID:          logging.GetRunID(ctx),
		Target:         opts.Target,
		Family:         fam.Name,
		NodeCount:      idx.Len(),
		ReferenceCount: idx.ReferenceCount(),
		Inputs:         idx.InputNames(),
		Outputs:        graph.ExpandOutputs(idx.Outputs(), fam.OutputSlots),
		Cycles:         cycles.Find(idx),
	}
	for _, c := range cycles.Broken(report.Cycles) {
		report.warn("cycles", errors.Errorf("nodes %q form a cycle", c.Nodes))
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := resolveDims(ctx, report, idx, opts, provider); err != nil {
		return nil, nil, err
	}

	if opts.Target.needsQuantization() {
		q, err := heuristics.DetectQuantization(idx, report.Outputs, opts.Stats)
		if err != nil {
			return nil, nil, err
		}
		report.Quantization = &q
	}

	if opts.Target.needsDetectionHeads() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		head, err := heuristics.NumClasses(idx, fam, opts.searchOptions()...)
		switch {
		case err == nil:
			report.Classes = &head
		case opts.Target == TargetTensorRT:
			return nil, nil, errors.WithMessage(err, "tensorrt needs the number of classes")
		default:
			report.fail("classes", err)
		}

		order, errs := heuristics.NMSInputOrder(idx, fam, opts.searchOptions()...)
		report.NMS = &order
		for _, err := range errs {
			report.warn("nms", err)
		}
	}

	report.CompletedAt = time.Now()
	logging.InfoContext(ctx, "analysis complete",
		"target", string(report.Target),
		"nodes", report.NodeCount,
		"diagnostics", len(report.Diagnostics))
	return report, idx, nil
}

// resolveDims fills in the dimensions of the first input
func resolveDims(ctx context.Context, report *Report, idx *graph.Index, opts Options, provider dims.InputProvider) error {
	inputs := idx.Inputs()
	if len(inputs) == 0 {
		report.warn("inputs", errors.New("graph has no Placeholder inputs"))
		return nil
	}
	first := inputs[0]
	if len(inputs) > 1 {
		logging.DebugContext(ctx, "resolving dimensions of the first input only", "input", first.Name, "inputs", len(inputs))
	}

	shape, ok := first.Shape(model.AttrShape)
	if !ok || shape.UnknownRank {
		if opts.DeclaredDims != nil {
			report.InputDims = append([]int(nil), opts.DeclaredDims...)
			return nil
		}
		report.warn("dims", errors.Errorf("input %q declares no shape and none was given", first.Name))
		return nil
	}

	graphDims, err := dims.FromShape(shape)
	if err != nil {
		return errors.WithMessagef(err, "input %q", first.Name)
	}
	resolved, err := dims.Resolve(opts.DeclaredDims, graphDims, provider)
	var validation *dims.ValidationError
	switch {
	case err == nil:
		report.InputDims = resolved
	case errors.As(err, &validation), opts.Target != TargetAll:
		return errors.WithMessagef(err, "input %q", first.Name)
	default:
		report.fail("dims", errors.WithMessagef(err, "input %q", first.Name))
	}
	return nil
}

// debugIndex logs the shape of the index at debug level
func debugIndex(ctx context.Context, idx *graph.Index) {
	logging.DebugContext(ctx, "graph indexed",
		"nodes", idx.Len(),
		"references", idx.ReferenceCount(),
		"inputs", len(idx.Inputs()),
		"outputs", len(idx.Outputs()))
}
