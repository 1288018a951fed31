package analysis

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/cycles"
	"github.com/ritzau/graph-analyzer/pkg/heuristics"
	"github.com/ritzau/graph-analyzer/pkg/lens"
)

// Target selects the converter whose facts are extracted
type Target string

const (
	TargetTFLite   Target = "tflite"   // Quantization and expanded outputs
	TargetEdgeTPU  Target = "edgetpu"  // Same facts as tflite, compiled further for the accelerator
	TargetTensorRT Target = "tensorrt" // Class count (required) and NMS input order
	TargetOpenVINO Target = "openvino" // Inputs, dimensions and outputs only
	TargetAll      Target = "all"      // Every extractor, failures recorded as diagnostics
)

// Targets lists the accepted target names
var Targets = []Target{TargetTFLite, TargetEdgeTPU, TargetTensorRT, TargetOpenVINO, TargetAll}

// ParseTarget validates a target name
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Targets {
		if t == known {
			return t, nil
		}
	}
	return "", errors.Errorf("unknown target %q, expected one of %v", s, Targets)
}

func (t Target) needsQuantization() bool {
	return t == TargetTFLite || t == TargetEdgeTPU || t == TargetAll
}

func (t Target) needsDetectionHeads() bool {
	return t == TargetTensorRT || t == TargetAll
}

// Severity of a diagnostic
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal finding of one analysis stage
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Stage    string   `json:"stage"` // e.g., "dims", "classes", "nms"
	Message  string   `json:"message"`
}

// Report holds the facts a converter needs, as extracted by one analysis run
type Report struct {
	RunID       string    `json:"runId"`
	Source      string    `json:"source,omitempty"`
	Target      Target    `json:"target"`
	Family      string    `json:"family"`
	CompletedAt time.Time `json:"completedAt"`

	NodeCount      int      `json:"nodeCount"`
	ReferenceCount int      `json:"referenceCount"`
	Inputs         []string `json:"inputs"`
	InputDims      []int    `json:"inputDims,omitempty"` // Resolved dimensions of the first input
	Outputs        []string `json:"outputs"`             // Expanded to one entry per output slot

	Quantization *heuristics.Quantization `json:"quantization,omitempty"`
	Classes      *heuristics.ClassHead    `json:"classes,omitempty"`
	NMS          *heuristics.NMSOrder     `json:"nms,omitempty"`

	Cycles      []cycles.Cycle `json:"cycles,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`

	// Changes since the previous successful run of the same Runner
	Changes *lens.GraphDiff `json:"changes,omitempty"`
}

func (r *Report) warn(stage string, err error) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityWarning, Stage: stage, Message: err.Error()})
}

func (r *Report) fail(stage string, err error) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityError, Stage: stage, Message: err.Error()})
}

// HasErrors returns true if any diagnostic is an error
func (r *Report) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
