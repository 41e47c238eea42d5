package curriculum

// NodeStatus is the learner's progress on a concept.
type NodeStatus string

const (
	StatusLocked    NodeStatus = "locked"
	StatusAvailable NodeStatus = "available"
	StatusCompleted NodeStatus = "completed"
)

// ParseNodeStatus maps unknown values to StatusAvailable.
func ParseNodeStatus(s string) NodeStatus {
	switch NodeStatus(s) {
	case StatusLocked, StatusCompleted:
		return NodeStatus(s)
	default:
		return StatusAvailable
	}
}

// Node is a concept in the knowledge graph.
type Node struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Group  int        `json:"group"`
	Status NodeStatus `json:"status"`
}

// Edge is a dependency between two concepts.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// KnowledgeGraph is the concept dependency graph of a course.
type KnowledgeGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty reports whether the graph has no nodes.
func (g KnowledgeGraph) Empty() bool {
	return len(g.Nodes) == 0
}

// Prune returns a copy of the graph without edges whose endpoints are not nodes,
// along with the number of edges dropped.
func (g KnowledgeGraph) Prune() (KnowledgeGraph, int) {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}

	out := KnowledgeGraph{
		Nodes: append([]Node{}, g.Nodes...),
		Edges: make([]Edge, 0, len(g.Edges)),
	}
	dropped := 0
	for _, e := range g.Edges {
		_, okS := ids[e.Source]
		_, okT := ids[e.Target]
		if !okS || !okT {
			dropped++
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	return out, dropped
}
