package layout

import "math"

// Mode is whether a node follows the simulation or the pointer.
type Mode int

const (
	Free Mode = iota
	Pinned
)

func (m Mode) String() string {
	if m == Pinned {
		return "pinned"
	}
	return "free"
}

// Node is a graph node with simulation state.
type Node struct {
	ID     string
	X, Y   float64
	VX, VY float64
	Mode   Mode
	// PinX and PinY hold the pointer position while Mode is Pinned.
	PinX, PinY float64
}

// Link joins two nodes by index.
type Link struct {
	Source, Target int
	Weight         float64
}

// Params tunes the simulation.
type Params struct {
	Width, Height  float64
	LinkDistance   float64
	ChargeStrength float64
	DistanceMin    float64
	VelocityDecay  float64
	AlphaMin       float64
	AlphaDecay     float64
	ReheatTarget   float64
}

// DefaultParams returns the standard parameters for a viewport.
func DefaultParams(width, height float64) Params {
	return Params{
		Width:          width,
		Height:         height,
		LinkDistance:   100,
		ChargeStrength: -300,
		DistanceMin:    1,
		VelocityDecay:  0.4,
		AlphaMin:       0.001,
		AlphaDecay:     1 - math.Pow(0.001, 1.0/300),
		ReheatTarget:   0.3,
	}
}

// Center returns the viewport centre.
func (p Params) Center() (float64, float64) {
	return p.Width / 2, p.Height / 2
}

// Step advances the layout by one tick at the given alpha and returns the new
// node states. The input slice is not modified.
func Step(nodes []Node, links []Link, p Params, alpha float64) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	if len(out) == 0 {
		return out
	}

	applyLinks(out, links, p, alpha)
	applyCharge(out, p, alpha)
	applyCenter(out, p)

	keep := 1 - p.VelocityDecay
	for i := range out {
		n := &out[i]
		if n.Mode == Pinned {
			n.X, n.Y = n.PinX, n.PinY
			n.VX, n.VY = 0, 0
			continue
		}
		n.VX *= keep
		n.VY *= keep
		n.X += n.VX
		n.Y += n.VY
	}
	return out
}

func applyLinks(nodes []Node, links []Link, p Params, alpha float64) {
	count := make([]int, len(nodes))
	for _, l := range links {
		count[l.Source]++
		count[l.Target]++
	}

	for i, l := range links {
		// A self-loop has zero rest length and pulls on itself equally both ways.
		if l.Source == l.Target || l.Weight <= 0 {
			continue
		}
		s, t := &nodes[l.Source], &nodes[l.Target]

		x := t.X + t.VX - s.X - s.VX
		y := t.Y + t.VY - s.Y - s.VY
		if x == 0 {
			x = jiggle(i, 0)
		}
		if y == 0 {
			y = jiggle(i, 1)
		}
		dist := math.Sqrt(x*x + y*y)
		strength := l.Weight / float64(min(count[l.Source], count[l.Target]))
		k := (dist - p.LinkDistance) / dist * alpha * strength
		x *= k
		y *= k

		bias := float64(count[l.Source]) / float64(count[l.Source]+count[l.Target])
		t.VX -= x * bias
		t.VY -= y * bias
		s.VX += x * (1 - bias)
		s.VY += y * (1 - bias)
	}
}

func applyCharge(nodes []Node, p Params, alpha float64) {
	minDist2 := p.DistanceMin * p.DistanceMin
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			x := nodes[j].X - nodes[i].X
			y := nodes[j].Y - nodes[i].Y
			if x == 0 {
				x = jiggle(i, j)
			}
			if y == 0 {
				y = jiggle(j, i)
			}
			l := x*x + y*y
			if l < minDist2 {
				l = math.Sqrt(minDist2 * l)
			}
			w := p.ChargeStrength * alpha / l
			nodes[i].VX += x * w
			nodes[i].VY += y * w
			nodes[j].VX -= x * w
			nodes[j].VY -= y * w
		}
	}
}

func applyCenter(nodes []Node, p Params) {
	cx, cy := p.Center()
	var sx, sy float64
	for _, n := range nodes {
		sx += n.X
		sy += n.Y
	}
	dx := sx/float64(len(nodes)) - cx
	dy := sy/float64(len(nodes)) - cy
	for i := range nodes {
		nodes[i].X -= dx
		nodes[i].Y -= dy
	}
}

// jiggle returns a tiny non-zero offset that separates coincident nodes the
// same way on every run.
func jiggle(a, b int) float64 {
	v := float64((a*7919+b*104729)%13+1) * 1e-6
	if (a+b)%2 == 1 {
		return -v
	}
	return v
}

// phyllotaxis places node i on a sunflower spiral around (cx, cy).
func phyllotaxis(i int, cx, cy float64) (float64, float64) {
	const initialRadius = 10
	initialAngle := math.Pi * (3 - math.Sqrt(5))
	r := initialRadius * math.Sqrt(0.5+float64(i))
	a := float64(i) * initialAngle
	return cx + r*math.Cos(a), cy + r*math.Sin(a)
}
