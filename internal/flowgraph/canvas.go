// Package flowgraph is the server-side document model of a flow's node set.
// Canvas is the free-form graph view, Sequence the ordered list view; both
// read and write the same canonical coordinate positions.
package flowgraph

import (
	"errors"
	"fmt"

	"github.com/ayush/ivr-designer/internal/models"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrStartNode    = errors.New("the start node cannot be moved or deleted")
	ErrDuplicateID  = errors.New("node id already in use")
	ErrImmovable    = errors.New("node cannot move further in that direction")
)

// Edge is one nextNodeIds entry drawn as a connection.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

type Canvas struct {
	nodes []models.Node
}

// NewCanvas copies nodes into a new canvas.
func NewCanvas(nodes []models.Node) *Canvas {
	return &Canvas{nodes: cloneNodes(nodes)}
}

func (c *Canvas) Nodes() []models.Node { return cloneNodes(c.nodes) }

// Edges derives one edge per nextNodeIds entry, in node order. Branch
// sources label their edges "Option n", counting from 1.
func (c *Canvas) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, n := range c.nodes {
		for i, target := range n.NextNodeIDs {
			e := Edge{ID: n.ID + "-" + target, Source: n.ID, Target: target}
			if n.Type == models.NodeBranch {
				e.Label = fmt.Sprintf("Option %d", i+1)
			}
			edges = append(edges, e)
		}
	}
	return edges
}

func (c *Canvas) AddNode(n models.Node) error {
	if c.index(n.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	if n.NextNodeIDs == nil {
		n.NextNodeIDs = []string{}
	}
	c.nodes = append(c.nodes, n)
	return nil
}

// Connect appends target to the source's nextNodeIds. Repeated connections
// are kept.
func (c *Canvas) Connect(source, target string) error {
	src := c.index(source)
	if src < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, source)
	}
	if c.index(target) < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	}
	c.nodes[src].NextNodeIDs = append(c.nodes[src].NextNodeIDs, target)
	return nil
}

func (c *Canvas) MoveNode(id string, p models.Position) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	c.nodes[i].Position = p
	return nil
}

// RemoveNode deletes a node and strips it from every nextNodeIds.
func (c *Canvas) RemoveNode(id string) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if c.nodes[i].Type == models.NodeStart {
		return ErrStartNode
	}
	c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
	stripReferences(c.nodes, id)
	return nil
}

func (c *Canvas) index(id string) int {
	for i := range c.nodes {
		if c.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func stripReferences(nodes []models.Node, id string) {
	for i := range nodes {
		kept := nodes[i].NextNodeIDs[:0]
		for _, next := range nodes[i].NextNodeIDs {
			if next != id {
				kept = append(kept, next)
			}
		}
		nodes[i].NextNodeIDs = kept
	}
}

func cloneNodes(nodes []models.Node) []models.Node {
	out := make([]models.Node, len(nodes))
	for i, n := range nodes {
		n.NextNodeIDs = append([]string{}, n.NextNodeIDs...)
		out[i] = n
	}
	return out
}
