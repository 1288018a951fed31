// Package dims reconciles caller-declared input dimensions with the dimensions a graph declares.
package dims

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/model"
)

// ErrUnknownRank is returned by FromShape for shapes without a declared rank
var ErrUnknownRank = errors.New("input shape has unknown rank")

// ValidationError reports declared dimensions that contradict the graph
type ValidationError struct {
	Axis     int // -1 for an arity mismatch
	Declared []int
	Existing []int
}

func (e *ValidationError) Error() string {
	if e.Axis < 0 {
		return fmt.Sprintf("declared %d dimensions %v, graph declares %d %v",
			len(e.Declared), e.Declared, len(e.Existing), e.Existing)
	}
	if e.Axis < len(e.Existing) && e.Existing[e.Axis] >= 0 {
		return fmt.Sprintf("axis %d: declared %d, graph declares %d (declared %v, existing %v)",
			e.Axis, e.Declared[e.Axis], e.Existing[e.Axis], e.Declared, e.Existing)
	}
	return fmt.Sprintf("axis %d: declared %d is not a positive size (declared %v, existing %v)",
		e.Axis, e.Declared[e.Axis], e.Declared, e.Existing)
}

// Resolve returns a fully known dimension vector for an input.
//
// A non-nil declared vector must match graphDims in arity and on every axis the graph declares;
// it is then returned unchanged. With declared == nil, graphDims is returned when fully known and
// otherwise the provider is asked for the missing sizes until it supplies exactly the right number.
func Resolve(declared, graphDims []int, provider InputProvider) ([]int, error) {
	if declared != nil {
		if err := validate(declared, graphDims); err != nil {
			return nil, err
		}
		return append([]int(nil), declared...), nil
	}

	missing := 0
	for _, d := range graphDims {
		if d < 0 {
			missing++
		}
	}
	if missing == 0 {
		return append([]int(nil), graphDims...), nil
	}

	prompt := Prompt(graphDims, missing)
	for {
		tokens, err := provider.Prompt(prompt)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %d missing dimensions", missing)
		}
		values, err := parseTokens(tokens, missing)
		if err != nil {
			report(provider, err)
			continue
		}
		return substitute(graphDims, values), nil
	}
}

// Prompt renders the request for missing dimensions, unknown axes shown as "?"
func Prompt(graphDims []int, missing int) string {
	parts := make([]string, len(graphDims))
	for i, d := range graphDims {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = strconv.Itoa(d)
		}
	}
	return fmt.Sprintf("Existing input structure is [%s], enter %d missing dimensions:", strings.Join(parts, " "), missing)
}

// FromShape returns the dimensions of a shape attribute, -1 for unknown axes
func FromShape(shape model.ShapeAttr) ([]int, error) {
	if shape.UnknownRank {
		return nil, ErrUnknownRank
	}
	result := make([]int, len(shape.Dims))
	for i, d := range shape.Dims {
		if d < 0 {
			d = model.UnknownDim
		}
		result[i] = d
	}
	return result, nil
}

func validate(declared, existing []int) error {
	if len(declared) != len(existing) {
		return &ValidationError{Axis: -1, Declared: declared, Existing: existing}
	}
	for axis, d := range declared {
		if d <= 0 || (existing[axis] >= 0 && existing[axis] != d) {
			return &ValidationError{Axis: axis, Declared: declared, Existing: existing}
		}
	}
	return nil
}

func parseTokens(tokens []string, want int) ([]int, error) {
	if len(tokens) != want {
		return nil, errors.Errorf("expected %d values, got %d", want, len(tokens))
	}
	values := make([]int, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil || v <= 0 {
			return nil, errors.Errorf("%q is not a positive integer", tok)
		}
		values[i] = v
	}
	return values, nil
}

func substitute(graphDims, values []int) []int {
	result := make([]int, len(graphDims))
	next := 0
	for i, d := range graphDims {
		if d < 0 {
			d = values[next]
			next++
		}
		result[i] = d
	}
	return result
}

func report(provider InputProvider, err error) {
	if r, ok := provider.(Reporter); ok {
		r.Report(err)
		return
	}
	logging.Warn("invalid dimensions entered", "error", err)
}
