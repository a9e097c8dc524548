package flowgraph

import (
	"fmt"
	"sort"

	"github.com/ayush/ivr-designer/internal/models"
)

// Sequence is the ordered list view. The start node is pinned at index 0.
type Sequence struct {
	nodes []models.Node
}

// NewSequence orders nodes for the list view: start first, then by y, x
// and id, so canvas layouts and stored ordinals read back the same way.
func NewSequence(nodes []models.Node) *Sequence {
	s := &Sequence{nodes: cloneNodes(nodes)}
	sort.SliceStable(s.nodes, func(i, j int) bool {
		a, b := s.nodes[i], s.nodes[j]
		if (a.Type == models.NodeStart) != (b.Type == models.NodeStart) {
			return a.Type == models.NodeStart
		}
		if a.Position.Y != b.Position.Y {
			return a.Position.Y < b.Position.Y
		}
		if a.Position.X != b.Position.X {
			return a.Position.X < b.Position.X
		}
		return a.ID < b.ID
	})
	return s
}

func (s *Sequence) Len() int { return len(s.nodes) }

// Add appends n at the end of the sequence.
func (s *Sequence) Add(n models.Node) error {
	if s.index(n.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	if n.NextNodeIDs == nil {
		n.NextNodeIDs = []string{}
	}
	s.nodes = append(s.nodes, n)
	return nil
}

// MoveUp swaps a node with its predecessor. Nothing may move above start.
func (s *Sequence) MoveUp(id string) error {
	i := s.index(id)
	switch {
	case i < 0:
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	case s.nodes[i].Type == models.NodeStart:
		return ErrStartNode
	case i <= 1:
		return ErrImmovable
	}
	s.nodes[i-1], s.nodes[i] = s.nodes[i], s.nodes[i-1]
	return nil
}

func (s *Sequence) MoveDown(id string) error {
	i := s.index(id)
	switch {
	case i < 0:
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	case s.nodes[i].Type == models.NodeStart:
		return ErrStartNode
	case i >= len(s.nodes)-1:
		return ErrImmovable
	}
	s.nodes[i+1], s.nodes[i] = s.nodes[i], s.nodes[i+1]
	return nil
}

// Delete removes a node, renumbers the rest and strips the id from every
// nextNodeIds.
func (s *Sequence) Delete(id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if s.nodes[i].Type == models.NodeStart {
		return ErrStartNode
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	stripReferences(s.nodes, id)
	return nil
}

// Ordinals maps each node id to its index.
func (s *Sequence) Ordinals() map[string]int {
	out := make(map[string]int, len(s.nodes))
	for i, n := range s.nodes {
		out[n.ID] = i
	}
	return out
}

// Nodes returns the nodes in order with positions rewritten to the
// coordinate of their slot.
func (s *Sequence) Nodes() []models.Node {
	out := cloneNodes(s.nodes)
	for i := range out {
		out[i].Position = models.OrdinalPosition(i)
	}
	return out
}

// OrdinalNode is a node as the list view shows it, positioned by index.
type OrdinalNode struct {
	models.Node
	Position int `json:"position"`
}

func (s *Sequence) View() []OrdinalNode {
	out := make([]OrdinalNode, 0, len(s.nodes))
	for i, n := range cloneNodes(s.nodes) {
		out = append(out, OrdinalNode{Node: n, Position: i})
	}
	return out
}

func (s *Sequence) index(id string) int {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return i
		}
	}
	return -1
}
