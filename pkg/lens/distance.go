package lens

// Infinite is the distance of a node not connected to the selection
const Infinite = -1

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	nodeID   string
	distance int
}

// ComputeDistances calculates the shortest distance from each node to the nearest selected node,
// following edges in both directions.
//
// A selected name that is not a node but a name scope (e.g. "Postprocessor") selects every node
// inside it.
func ComputeDistances(graph *GraphData, selectedNodes []string) map[string]int {
	distances := make(map[string]int, len(graph.Nodes))
	for _, node := range graph.Nodes {
		distances[node.ID] = Infinite
	}
	if len(selectedNodes) == 0 {
		return distances
	}

	adjacency := buildAdjacencyList(graph)

	// Initialize BFS queue with selected nodes at distance 0
	var queue []distanceQueueNode
	for _, nodeID := range expandScopes(selectedNodes, graph) {
		distances[nodeID] = 0
		queue = append(queue, distanceQueueNode{nodeID: nodeID, distance: 0})
	}

	// BFS traversal
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adjacency[current.nodeID] {
			if d, exists := distances[neighbor]; exists && d == Infinite {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{nodeID: neighbor, distance: current.distance + 1})
			}
		}
	}
	return distances
}

// Focus returns the subgraph of nodes within maxDistance of the selection and the edges between them
func Focus(graph *GraphData, selectedNodes []string, maxDistance int) *GraphData {
	distances := ComputeDistances(graph, selectedNodes)
	within := func(id string) bool {
		d, ok := distances[id]
		return ok && d != Infinite && d <= maxDistance
	}

	focused := &GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, node := range graph.Nodes {
		if within(node.ID) {
			focused.Nodes = append(focused.Nodes, node)
		}
	}
	for _, edge := range graph.Edges {
		if within(edge.Source) && within(edge.Target) {
			focused.Edges = append(focused.Edges, edge)
		}
	}
	return focused
}

// expandScopes replaces names that are not nodes by the nodes inside that name scope
func expandScopes(selectedNodes []string, graph *GraphData) []string {
	nodes := make(map[string]bool, len(graph.Nodes))
	for _, node := range graph.Nodes {
		nodes[node.ID] = true
	}

	var expanded []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			expanded = append(expanded, id)
		}
	}
	for _, id := range selectedNodes {
		if nodes[id] {
			add(id)
			continue
		}
		for _, node := range graph.Nodes {
			if inScope(node.ID, id) {
				add(node.ID)
			}
		}
	}
	return expanded
}

// inScope reports whether name lies inside the name scope s
func inScope(name, s string) bool {
	for p := scope(name); p != ""; p = scope(p) {
		if p == s {
			return true
		}
	}
	return false
}

// buildAdjacencyList creates an undirected adjacency list from graph edges
func buildAdjacencyList(graph *GraphData) map[string][]string {
	adjacency := make(map[string][]string)
	for _, edge := range graph.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		adjacency[edge.Target] = append(adjacency[edge.Target], edge.Source)
	}
	return adjacency
}
