package normalize

import (
	"log/slog"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/curriculum"
)

const defaultEdgeWeight = 1.0

// Graph decodes a graph-generation response. Nodes without an id are dropped,
// duplicate ids keep the first occurrence, and edges whose endpoints are not
// nodes are dropped. Self-loops and duplicate edges are kept.
func (n *Normalizer) Graph(raw string) (curriculum.KnowledgeGraph, error) {
	v, err := n.decode(ai.IntentGraph, raw)
	if err != nil {
		return curriculum.KnowledgeGraph{Nodes: []curriculum.Node{}, Edges: []curriculum.Edge{}}, err
	}
	return graphFrom(v), nil
}

func graphFrom(v any) curriculum.KnowledgeGraph {
	m := object(v)
	g := curriculum.KnowledgeGraph{
		Nodes: []curriculum.Node{},
		Edges: []curriculum.Edge{},
	}

	seen := make(map[string]bool)
	for _, raw := range list(m["nodes"]) {
		nm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		nodeID := id(nm["id"])
		if nodeID == "" || seen[nodeID] {
			continue
		}
		seen[nodeID] = true

		group, _ := integer(nm["group"])
		status, _ := nm["status"].(string)
		g.Nodes = append(g.Nodes, curriculum.Node{
			ID:     nodeID,
			Label:  str(first(nm, "label", "name"), nodeID),
			Group:  group,
			Status: curriculum.ParseNodeStatus(status),
		})
	}

	dropped := 0
	for _, raw := range list(first(m, "edges", "links")) {
		em, ok := raw.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		source, target := id(em["source"]), id(em["target"])
		if !seen[source] || !seen[target] {
			dropped++
			continue
		}
		weight, ok := number(em["weight"])
		if !ok || weight < 0 {
			weight = defaultEdgeWeight
		}
		g.Edges = append(g.Edges, curriculum.Edge{Source: source, Target: target, Weight: weight})
	}

	if dropped > 0 {
		slog.Warn("dropped graph edges with unknown endpoints", "dropped", dropped, "kept", len(g.Edges))
	}
	return g
}
