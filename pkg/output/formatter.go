// Package output renders analysis reports for the console.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/analysis"
	"github.com/ritzau/graph-analyzer/pkg/heuristics"
)

// PrintReport writes a nicely formatted report with colors
func PrintReport(w io.Writer, report *analysis.Report) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "Graph Analyzer - Conversion Report")
	bold.Fprintln(w, "==================================")
	if report.Source != "" {
		fmt.Fprintf(w, "Model: %s\n", report.Source)
	}
	fmt.Fprintf(w, "Target: %s (family %s)\n", report.Target, report.Family)
	fmt.Fprintf(w, "Nodes: %d, references: %d\n", report.NodeCount, report.ReferenceCount)
	fmt.Fprintln(w)

	cyan.Fprintln(w, "INPUTS:")
	for _, name := range report.Inputs {
		fmt.Fprintf(w, "  %s\n", name)
	}
	if report.InputDims != nil {
		fmt.Fprintf(w, "  Dimensions: %s\n", formatDims(report.InputDims))
	}
	cyan.Fprintln(w, "OUTPUTS:")
	for _, name := range report.Outputs {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w)

	if q := report.Quantization; q != nil {
		if q.Quantized {
			yellow.Fprintf(w, "Quantized: yes (%s)\n", q.Node)
			fmt.Fprintf(w, "  Mean: %g, std: %g\n", q.Stats.Mean, q.Stats.Std)
		} else {
			fmt.Fprintln(w, "Quantized: no")
		}
	}
	if c := report.Classes; c != nil {
		fmt.Fprintf(w, "Classes: %d (%s)\n", c.NumClasses, c.Node)
	}
	if nms := report.NMS; nms != nil {
		if nms.Complete() {
			fmt.Fprintf(w, "NMS input order: %s\n", formatOrder(nms))
		} else {
			yellow.Fprintf(w, "NMS input order: %s\n", formatOrder(nms))
		}
	}

	if len(report.Cycles) > 0 {
		fmt.Fprintln(w)
		cyan.Fprintln(w, "CYCLES:")
		for _, c := range report.Cycles {
			kind := "broken"
			if c.Loop {
				kind = "while loop"
			}
			fmt.Fprintf(w, "  %s: %s\n", kind, strings.Join(c.Nodes, " -> "))
		}
	}

	if c := report.Changes; c != nil && !c.Empty() {
		fmt.Fprintln(w)
		cyan.Fprintln(w, "CHANGES SINCE LAST RUN:")
		fmt.Fprintf(w, "  Nodes: +%d -%d ~%d\n", len(c.AddedNodes), len(c.RemovedNodes), len(c.ModifiedNodes))
		fmt.Fprintf(w, "  Edges: +%d -%d\n", len(c.AddedEdges), len(c.RemovedEdges))
	}

	if len(report.Diagnostics) > 0 {
		fmt.Fprintln(w)
		red.Fprintln(w, "DIAGNOSTICS:")
		for _, d := range report.Diagnostics {
			c := yellow
			if d.Severity == analysis.SeverityError {
				c = red
			}
			c.Fprintf(w, "  [%s] %s: %s\n", d.Severity, d.Stage, d.Message)
		}
	}

	fmt.Fprintln(w)
	switch {
	case report.HasErrors():
		red.Fprintf(w, "Summary: %d diagnostic(s), conversion facts incomplete\n", len(report.Diagnostics))
	case len(report.Diagnostics) > 0:
		yellow.Fprintf(w, "Summary: %d warning(s)\n", len(report.Diagnostics))
	default:
		green.Fprintln(w, "✓ All facts extracted")
	}
}

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, report *analysis.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	return nil
}

func formatDims(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// formatOrder renders e.g. "location=1 confidence=2 priorbox=0"
func formatOrder(nms *heuristics.NMSOrder) string {
	parts := make([]string, len(heuristics.NMSRoles))
	for i, role := range heuristics.NMSRoles {
		pos := "?"
		if nms.Order[i] != heuristics.Unresolved {
			pos = fmt.Sprint(nms.Order[i])
		}
		parts[i] = fmt.Sprintf("%s=%s", role, pos)
	}
	return strings.Join(parts, " ")
}
