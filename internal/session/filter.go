package session

import "branchchat/internal/graph"

// Restrict computes the view of the conversation exposed to the oracle calls.
// With context mode off it returns the full turn list and node map; with it
// on, only turns whose number is in activeTurns (original order kept) and
// nodes whose id is in activeNodes survive. The result is always a copy;
// callers can hold it across store mutations.
func Restrict(turns []Turn, nodes map[string]graph.Node, activeTurns map[int]bool, activeNodes map[string]bool, enabled bool) ([]Turn, map[string]graph.Node) {
	if !enabled {
		outTurns := append([]Turn(nil), turns...)
		outNodes := make(map[string]graph.Node, len(nodes))
		for id, n := range nodes {
			outNodes[id] = n
		}
		return outTurns, outNodes
	}

	outTurns := make([]Turn, 0, len(activeTurns))
	for _, t := range turns {
		if activeTurns[t.Number] {
			outTurns = append(outTurns, t)
		}
	}

	outNodes := make(map[string]graph.Node, len(activeNodes))
	for id, n := range nodes {
		if activeNodes[id] {
			outNodes[id] = n
		}
	}

	return outTurns, outNodes
}
