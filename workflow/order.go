package workflow

// ExecutionOrder returns node ids in topological order, breaking ties by
// definition order. Nodes on a cycle are left out, matching how the
// execution backend schedules a definition.
func ExecutionOrder(g Graph) []string {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}

	adjacency := make(map[string][]string)
	for _, e := range g.Edges {
		if _, ok := inDegree[e.Target]; !ok {
			continue
		}
		if _, ok := inDegree[e.Source]; !ok {
			continue
		}
		inDegree[e.Target]++
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
	}

	var queue []string
	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}
