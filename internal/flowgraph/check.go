package flowgraph

import (
	"fmt"
	"strings"

	"github.com/ayush/ivr-designer/internal/models"
)

// Violations lists every structural problem found in a node set.
type Violations []string

func (v Violations) Error() string { return strings.Join(v, "; ") }

// Check enforces the node-set invariants required on save: exactly one start
// node, known types, unique non-empty ids, and nextNodeIds that only name
// nodes of the same set.
func Check(nodes []models.Node) error {
	var v Violations

	ids := make(map[string]bool, len(nodes))
	starts := 0
	for i, n := range nodes {
		switch {
		case n.ID == "":
			v = append(v, fmt.Sprintf("node %d has no id", i))
		case ids[n.ID]:
			v = append(v, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		ids[n.ID] = true

		if !n.Type.Valid() {
			v = append(v, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
		if n.Type == models.NodeStart {
			starts++
		}
	}
	if starts != 1 {
		v = append(v, fmt.Sprintf("flow must have exactly one start node, found %d", starts))
	}

	for _, n := range nodes {
		for _, next := range n.NextNodeIDs {
			if !ids[next] {
				v = append(v, fmt.Sprintf("node %q points to unknown node %q", n.ID, next))
			}
		}
	}

	if len(v) > 0 {
		return v
	}
	return nil
}

// Flatten turns submitted editor nodes into the persisted node records of
// flowID. A node without a position takes the sequence slot of its index.
func Flatten(flowID string, in []models.NodeInput) []models.Node {
	out := make([]models.Node, 0, len(in))
	for i, n := range in {
		pos := models.OrdinalPosition(i)
		if n.Position != nil {
			pos = *n.Position
		}
		next := n.NextNodeIDs
		if next == nil {
			next = []string{}
		}
		out = append(out, models.Node{
			ID:              n.ID,
			FlowID:          flowID,
			Type:            n.Type,
			Title:           n.Title,
			Prompt:          n.Prompt,
			Position:        pos,
			TokenID:         n.TokenID,
			ValidationRules: n.ValidationRules,
			NextNodeIDs:     next,
		})
	}
	return out
}
