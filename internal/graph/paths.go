package graph

// Distances runs a breadth-first search from source along edge direction and returns
// the shortest hop count to every reachable node, source included at distance 0.
func (g *Graph) Distances(source string) map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dist := make(map[string]int)
	if _, exists := g.nodes[source]; !exists {
		return dist
	}

	dist[source] = 0
	queue := []string{source}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range sortedKeys(g.out[current]) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[current] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// AncestorCount returns how many other nodes can reach name, which equals the in-degree
// of name in the transitive closure of the graph.
func (g *Graph) AncestorCount(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]struct{}{name: {}}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for prev := range g.in[current] {
			if _, ok := seen[prev]; ok {
				continue
			}
			seen[prev] = struct{}{}
			queue = append(queue, prev)
		}
	}
	return len(seen) - 1
}
