package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/ritzau/graph-analyzer/pkg/analysis"
	"github.com/ritzau/graph-analyzer/pkg/cycles"
	"github.com/ritzau/graph-analyzer/pkg/heuristics"
	"github.com/ritzau/graph-analyzer/pkg/lens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func sampleReport() *analysis.Report {
	return &analysis.Report{
		RunID:     "run-1",
		Source:    "ssd.pb",
		Target:    analysis.TargetAll,
		Family:    "ssd",
		NodeCount: 16,
		Inputs:    []string{"image_tensor"},
		InputDims: []int{1, 300, 300, 3},
		Outputs:   []string{"detection_boxes", "detection_scores"},
		Quantization: &heuristics.Quantization{
			Quantized: true,
			Node:      "TFLite_Detection_PostProcess",
			Stats:     &heuristics.QuantStats{Mean: 128, Std: 128},
		},
		Classes: &heuristics.ClassHead{Node: "ClassPredictor/BiasAdd", NumClasses: 91},
		NMS: &heuristics.NMSOrder{
			Order:  [3]int{1, heuristics.Unresolved, 0},
			Inputs: []string{"anchors", "concat"},
		},
		Cycles: []cycles.Cycle{{Nodes: []string{"a", "b"}}},
	}
}

func TestPrintReport(t *testing.T) {
	report := sampleReport()
	report.Diagnostics = []analysis.Diagnostic{
		{Severity: analysis.SeverityWarning, Stage: "nms", Message: "confidence unresolved"},
	}
	report.Changes = &lens.GraphDiff{AddedNodes: []lens.GraphNode{{ID: "detection_classes"}}}

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "Model: ssd.pb")
	assert.Contains(t, out, "Dimensions: [1 300 300 3]")
	assert.Contains(t, out, "Quantized: yes (TFLite_Detection_PostProcess)")
	assert.Contains(t, out, "Mean: 128, std: 128")
	assert.Contains(t, out, "Classes: 91 (ClassPredictor/BiasAdd)")
	assert.Contains(t, out, "NMS input order: location=1 confidence=? priorbox=0")
	assert.Contains(t, out, "broken: a -> b")
	assert.Contains(t, out, "[warning] nms: confidence unresolved")
	assert.Contains(t, out, "Summary: 1 warning(s)")
	assert.Contains(t, out, "Nodes: +1 -0 ~0")
}

func TestPrintReportClean(t *testing.T) {
	report := sampleReport()
	report.NMS = nil
	report.Cycles = nil
	report.Quantization = &heuristics.Quantization{}

	var buf bytes.Buffer
	PrintReport(&buf, report)
	assert.Contains(t, buf.String(), "Quantized: no")
	assert.Contains(t, buf.String(), "✓ All facts extracted")
	assert.NotContains(t, buf.String(), "DIAGNOSTICS")
}

func TestPrintReportErrors(t *testing.T) {
	report := sampleReport()
	report.Diagnostics = []analysis.Diagnostic{
		{Severity: analysis.SeverityError, Stage: "classes", Message: "classifier head not found"},
	}

	var buf bytes.Buffer
	PrintReport(&buf, report)
	assert.Contains(t, buf.String(), "conversion facts incomplete")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Equal(t, "all", decoded["target"])
	classes := decoded["classes"].(map[string]interface{})
	assert.Equal(t, 91.0, classes["numClasses"])
	nms := decoded["nms"].(map[string]interface{})
	assert.Equal(t, []interface{}{1.0, -1.0, 0.0}, nms["order"])
}
