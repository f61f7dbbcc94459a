package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDependencyGraphDetectCycles(t *testing.T) {
	t.Parallel()

	graph := NewDependencyGraph()
	graph.AddEdge("A", "B")
	graph.AddEdge("B", "C")
	graph.AddEdge("C", "A")

	cycle := graph.DetectCycles()
	require.Len(t, cycle, 3)
	require.ElementsMatch(t, []string{"A", "B", "C"}, cycle)

	acyclic := NewDependencyGraph()
	acyclic.AddEdge("A", "B")
	acyclic.AddEdge("B", "C")

	require.Nil(t, acyclic.DetectCycles())
}

func TestDependencyGraphTopologicalSort(t *testing.T) {
	t.Parallel()

	graph := NewDependencyGraph()
	graph.AddEdge("B", "A")
	graph.AddEdge("C", "B")
	graph.AddEdge("C", "A")

	order, err := graph.TopologicalSort()
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, order)

	cyclic := NewDependencyGraph()
	cyclic.AddEdge("A", "B")
	cyclic.AddEdge("B", "A")

	_, err = cyclic.TopologicalSort()
	require.Error(t, err)
	var cycle ErrCircularDependency
	require.ErrorAs(t, err, &cycle)
	require.NotEmpty(t, cycle.Cycle)
}

func TestDependencyGraphKeepsInsertionOrderForTies(t *testing.T) {
	t.Parallel()

	graph := NewDependencyGraph()
	for _, name := range []string{"reporter", "deferrer", "rerunner", "lastfailed", "slicer"} {
		graph.AddNode(name)
	}
	// reporter must come after slicer; everything else keeps its place.
	graph.AddEdge("reporter", "slicer")

	order, err := graph.TopologicalSort()
	require.NoError(t, err)
	require.Equal(t, []string{"deferrer", "rerunner", "lastfailed", "slicer", "reporter"}, order)
}

func TestDependencyGraphUtilities(t *testing.T) {
	t.Parallel()

	graph := NewDependencyGraph()
	graph.AddEdge("rerunner", "reporter")
	graph.AddEdge("rerunner", "deferrer")
	graph.AddEdge("deferrer", "reporter")

	deps := graph.GetDependencies("rerunner")
	require.Equal(t, []string{"reporter", "deferrer"}, deps)

	dependents := graph.GetDependents("reporter")
	require.Equal(t, []string{"rerunner", "deferrer"}, dependents)

	require.True(t, graph.HasNode("rerunner"))
	require.False(t, graph.HasNode("missing"))
}
