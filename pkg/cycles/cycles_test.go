package cycles

import (
	"testing"

	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/model"
	"github.com/ritzau/graph-analyzer/pkg/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, g *model.Graph) []Cycle {
	t.Helper()
	idx, err := graph.Build(g)
	require.NoError(t, err)
	return Find(idx)
}

func TestFindNoCycles(t *testing.T) {
	assert.Empty(t, find(t, modeltest.Chain()))
	assert.Empty(t, find(t, modeltest.SSD()))
}

func TestFindWhileLoop(t *testing.T) {
	cycles := find(t, modeltest.Graph(
		modeltest.Op("init", "Const"),
		modeltest.Op("while/Merge", "Merge", "init", "while/NextIteration"),
		modeltest.Op("while/body", "Add", "while/Merge"),
		modeltest.Op("while/NextIteration", "NextIteration", "while/body"),
		modeltest.Op("out", "Identity", "while/Merge"),
	))

	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"while/Merge", "while/body", "while/NextIteration"}, cycles[0].Nodes)
	assert.True(t, cycles[0].Loop)
	assert.Empty(t, Broken(cycles))
}

func TestFindMultipleCycles(t *testing.T) {
	// a <-> b, then c -> d -> e -> c with an acyclic tail
	cycles := find(t, modeltest.Graph(
		modeltest.Op("a", "Identity", "b"),
		modeltest.Op("b", "Identity", "a"),
		modeltest.Op("c", "Identity", "e"),
		modeltest.Op("d", "Identity", "c"),
		modeltest.Op("e", "Identity", "d"),
		modeltest.Op("tail", "Identity", "e"),
	))

	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b"}, cycles[0].Nodes)
	assert.Equal(t, []string{"c", "d", "e"}, cycles[1].Nodes)
	assert.Len(t, Broken(cycles), 2)
}

func TestFindSelfReference(t *testing.T) {
	cycles := find(t, modeltest.Graph(
		modeltest.Placeholder("in", 1),
		modeltest.Op("acc", "Add", "in", "acc:0"),
	))

	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"acc"}, cycles[0].Nodes)
	assert.False(t, cycles[0].Loop)
}
