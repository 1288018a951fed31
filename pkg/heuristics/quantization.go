package heuristics

import (
	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model"
)

// QuantStats is the affine mapping (mean, standard deviation) of a quantized input
type QuantStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// DefaultQuantStats maps uint8 [0, 255] onto roughly [-1, 1]
var DefaultQuantStats = QuantStats{Mean: 128, Std: 128}

// Quantization is the outcome of DetectQuantization
type Quantization struct {
	Quantized bool        `json:"quantized"`
	Node      string      `json:"node,omitempty"`  // First output flagged as quantized
	Stats     *QuantStats `json:"stats,omitempty"` // Present only when quantized
}

// DetectQuantization reports whether any of the given outputs carries _output_quantized = true.
// Output names may carry a slot suffix. The first flagged output wins.
func DetectQuantization(idx *graph.Index, outputs []string, stats QuantStats) (Quantization, error) {
	for _, name := range outputs {
		node, ok := idx.Lookup(name)
		if !ok {
			return Quantization{}, errors.Wrapf(model.ErrStructural, "output %q is not a node of the graph", name)
		}
		if node.Bool(model.AttrOutputQuantized) {
			logging.Info("quantization detected", "node", node.Name, "mean", stats.Mean, "std", stats.Std)
			s := stats
			return Quantization{Quantized: true, Node: node.Name, Stats: &s}, nil
		}
	}
	return Quantization{}, nil
}
