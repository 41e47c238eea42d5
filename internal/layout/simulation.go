// Package layout computes a force-directed layout for the knowledge graph and
// keeps it updated while nodes are dragged.
package layout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/pai-course/internal/curriculum"
)

// ErrUnknownNode is returned when a drag names a node that is not in the graph.
var ErrUnknownNode = errors.New("unknown node")

// Simulation owns the layout of one knowledge graph. It is not safe for
// concurrent use.
type Simulation struct {
	params      Params
	meta        []curriculum.Node
	nodes       []Node
	links       []Link
	index       map[string]int
	alpha       float64
	alphaTarget float64
	dropped     int
}

// New builds a simulation for g. Edges whose endpoints are not nodes are dropped.
func New(g curriculum.KnowledgeGraph, p Params) *Simulation {
	pruned, dropped := g.Prune()

	s := &Simulation{
		params:  p,
		meta:    pruned.Nodes,
		nodes:   make([]Node, len(pruned.Nodes)),
		links:   make([]Link, 0, len(pruned.Edges)),
		index:   make(map[string]int, len(pruned.Nodes)),
		dropped: dropped,
	}

	cx, cy := p.Center()
	for i, n := range pruned.Nodes {
		x, y := phyllotaxis(i, cx, cy)
		s.nodes[i] = Node{ID: n.ID, X: x, Y: y}
		s.index[n.ID] = i
	}
	for _, e := range pruned.Edges {
		s.links = append(s.links, Link{
			Source: s.index[e.Source],
			Target: s.index[e.Target],
			Weight: e.Weight,
		})
	}

	if len(s.nodes) > 0 {
		s.alpha = 1
	}
	return s
}

// Dropped returns how many edges were discarded at construction.
func (s *Simulation) Dropped() int { return s.dropped }

// Alpha returns the current simulation energy.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Running reports whether the simulation still has energy to spend.
func (s *Simulation) Running() bool {
	return len(s.nodes) > 0 && s.alpha >= s.params.AlphaMin
}

// Tick advances one step and reports whether the simulation is still running.
func (s *Simulation) Tick() bool {
	if !s.Running() {
		return false
	}
	s.alpha += (s.alphaTarget - s.alpha) * s.params.AlphaDecay
	s.nodes = Step(s.nodes, s.links, s.params, s.alpha)
	return s.Running()
}

// Node returns the simulation state of a node.
func (s *Simulation) Node(id string) (Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// DragStart pins a node to the pointer and reheats the layout.
func (s *Simulation) DragStart(id string, x, y float64) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("drag start %q: %w", id, ErrUnknownNode)
	}
	s.nodes[i].Mode = Pinned
	s.nodes[i].PinX, s.nodes[i].PinY = x, y
	s.alphaTarget = s.params.ReheatTarget
	s.alpha = max(s.alpha, s.params.ReheatTarget)
	return nil
}

// Drag moves a pinned node with the pointer.
func (s *Simulation) Drag(id string, x, y float64) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("drag %q: %w", id, ErrUnknownNode)
	}
	if s.nodes[i].Mode != Pinned {
		return s.DragStart(id, x, y)
	}
	s.nodes[i].PinX, s.nodes[i].PinY = x, y
	return nil
}

// DragEnd releases a node and lets the layout cool down.
func (s *Simulation) DragEnd(id string) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("drag end %q: %w", id, ErrUnknownNode)
	}
	s.nodes[i].Mode = Free
	s.alphaTarget = 0
	return nil
}

// Frame is a snapshot of the layout for rendering.
type Frame struct {
	Alpha   float64           `json:"alpha"`
	Running bool              `json:"running"`
	Nodes   []FrameNode       `json:"nodes"`
	Links   []curriculum.Edge `json:"links"`
}

// FrameNode is a positioned node with its presentation colour.
type FrameNode struct {
	ID     string                `json:"id"`
	Label  string                `json:"label"`
	Group  int                   `json:"group"`
	Status curriculum.NodeStatus `json:"status"`
	Color  string                `json:"color"`
	X      float64               `json:"x"`
	Y      float64               `json:"y"`
	Pinned bool                  `json:"pinned"`
}

// Positions returns the current frame.
func (s *Simulation) Positions() Frame {
	f := Frame{
		Alpha:   s.alpha,
		Running: s.Running(),
		Nodes:   make([]FrameNode, len(s.nodes)),
		Links:   make([]curriculum.Edge, len(s.links)),
	}
	for i, n := range s.nodes {
		m := s.meta[i]
		f.Nodes[i] = FrameNode{
			ID:     n.ID,
			Label:  m.Label,
			Group:  m.Group,
			Status: m.Status,
			Color:  StatusColor(m.Status),
			X:      n.X,
			Y:      n.Y,
			Pinned: n.Mode == Pinned,
		}
	}
	for i, l := range s.links {
		f.Links[i] = curriculum.Edge{Source: s.nodes[l.Source].ID, Target: s.nodes[l.Target].ID, Weight: l.Weight}
	}
	return f
}

// DragType names a pointer interaction.
type DragType string

const (
	DragTypeStart DragType = "dragstart"
	DragTypeMove  DragType = "drag"
	DragTypeEnd   DragType = "dragend"
)

// DragEvent is a pointer interaction with one node.
type DragEvent struct {
	Type DragType `json:"type"`
	ID   string   `json:"id"`
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
}

// Apply feeds the event into the simulation.
func (s *Simulation) Apply(ev DragEvent) error {
	switch ev.Type {
	case DragTypeStart:
		return s.DragStart(ev.ID, ev.X, ev.Y)
	case DragTypeMove:
		return s.Drag(ev.ID, ev.X, ev.Y)
	case DragTypeEnd:
		return s.DragEnd(ev.ID)
	default:
		return fmt.Errorf("unknown drag event type %q", ev.Type)
	}
}

// Run emits the initial frame, then ticks every interval and emits a frame
// after each step and after each applied drag event. While at rest it waits
// for drag events. Run returns nil once
// the layout is at rest and events is nil or closed, ctx.Err() when ctx ends,
// or the first error from emit. A graph without nodes never starts.
func (s *Simulation) Run(ctx context.Context, interval time.Duration, events <-chan DragEvent, emit func(Frame) error) error {
	if len(s.nodes) == 0 {
		return nil
	}
	if err := emit(s.Positions()); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !s.Running() && events == nil {
			return nil
		}

		var tick <-chan time.Time
		if s.Running() {
			tick = ticker.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Bad events from a client are ignored; the stream keeps going.
			if err := s.Apply(ev); err != nil {
				continue
			}
			if err := emit(s.Positions()); err != nil {
				return err
			}
		case <-tick:
			s.Tick()
			if err := emit(s.Positions()); err != nil {
				return err
			}
		}
	}
}
