package designer

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ayush/ivr-designer/internal/access"
	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/flowgraph"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
)

// Graph is the canvas view of a flow.
type Graph struct {
	FlowID  string           `json:"flowId"`
	Version int              `json:"version"`
	Nodes   []models.Node    `json:"nodes"`
	Edges   []flowgraph.Edge `json:"edges"`
}

// SequenceView is the list view of a flow with index positions.
type SequenceView struct {
	FlowID  string                  `json:"flowId"`
	Version int                     `json:"version"`
	Nodes   []flowgraph.OrdinalNode `json:"nodes"`
}

func (s *Service) loadFlow(ctx context.Context, kind access.Kind, id string) (*access.Grant, []models.Node, error) {
	g, err := s.authz.Authorize(ctx, kind, id)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := s.repos.Nodes.ListByFlow(ctx, g.Flow.ID)
	if err != nil {
		return nil, nil, storageErr("Failed to fetch flow", err)
	}
	return g, nodes, nil
}

func (s *Service) Graph(ctx context.Context, flowID string) (*Graph, error) {
	g, nodes, err := s.loadFlow(ctx, access.Flow, flowID)
	if err != nil {
		return nil, err
	}
	c := flowgraph.NewCanvas(nodes)
	return &Graph{FlowID: g.Flow.ID, Version: g.Flow.Version, Nodes: c.Nodes(), Edges: c.Edges()}, nil
}

func (s *Service) Sequence(ctx context.Context, flowID string) (*SequenceView, error) {
	g, nodes, err := s.loadFlow(ctx, access.Flow, flowID)
	if err != nil {
		return nil, err
	}
	return &SequenceView{FlowID: g.Flow.ID, Version: g.Flow.Version, Nodes: flowgraph.NewSequence(nodes).View()}, nil
}

// editorErr maps document-model errors onto client errors.
func editorErr(err error) error {
	switch {
	case errors.Is(err, flowgraph.ErrNodeNotFound),
		errors.Is(err, flowgraph.ErrStartNode),
		errors.Is(err, flowgraph.ErrImmovable),
		errors.Is(err, flowgraph.ErrDuplicateID):
		return apperr.Validation("%s", err.Error())
	}
	return err
}

// Connect adds an edge from source to target.
func (s *Service) Connect(ctx context.Context, flowID string, req models.ConnectRequest) (*models.FlowWithNodes, error) {
	g, nodes, err := s.loadFlow(ctx, access.Flow, flowID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVersion(g.Flow, req.Version); err != nil {
		return nil, err
	}
	c := flowgraph.NewCanvas(nodes)
	if err := c.Connect(req.Source, req.Target); err != nil {
		return nil, editorErr(err)
	}
	return s.saveNodes(ctx, g.Flow, c.Nodes(), repository.FlowPatch{})
}

// AddNode appends a node. Without a position it is placed below every
// existing node, which makes it last in the list view.
func (s *Service) AddNode(ctx context.Context, flowID string, req models.AddNodeRequest) (*models.FlowWithNodes, *models.Node, error) {
	g, nodes, err := s.loadFlow(ctx, access.Flow, flowID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkVersion(g.Flow, req.Version); err != nil {
		return nil, nil, err
	}

	n := models.Node{
		ID:              string(req.Type) + "-" + uuid.NewString(),
		FlowID:          g.Flow.ID,
		Type:            req.Type,
		Title:           strings.TrimSpace(req.Title),
		Prompt:          req.Prompt,
		TokenID:         req.TokenID,
		ValidationRules: req.ValidationRules,
		NextNodeIDs:     []string{},
	}
	if n.Title == "" {
		n.Title = "New " + string(req.Type)
	}

	if req.Position != nil {
		n.Position = *req.Position
	} else {
		n.Position = belowAll(nodes)
	}
	c := flowgraph.NewCanvas(nodes)
	if err := c.AddNode(n); err != nil {
		return nil, nil, editorErr(err)
	}

	flow, err := s.saveNodes(ctx, g.Flow, c.Nodes(), repository.FlowPatch{})
	if err != nil {
		return nil, nil, err
	}
	for i := range flow.Nodes {
		if flow.Nodes[i].ID == n.ID {
			return flow, &flow.Nodes[i], nil
		}
	}
	return flow, &n, nil
}

func belowAll(nodes []models.Node) models.Position {
	p := models.OrdinalPosition(len(nodes))
	for _, n := range nodes {
		if n.Position.Y >= p.Y {
			p.Y = n.Position.Y + models.SequenceSpacing
		}
	}
	return p
}

func (s *Service) GetNode(ctx context.Context, id string) (*models.Node, error) {
	g, err := s.authz.Authorize(ctx, access.Node, id)
	if err != nil {
		return nil, err
	}
	return g.Node, nil
}

// MoveNode moves a node one slot up or down in the list view. The whole
// flow is re-laid out in sequence order.
func (s *Service) MoveNode(ctx context.Context, id string, req models.MoveNodeRequest) (*models.FlowWithNodes, error) {
	g, nodes, err := s.loadFlow(ctx, access.Node, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVersion(g.Flow, req.Version); err != nil {
		return nil, err
	}
	seq := flowgraph.NewSequence(nodes)
	if req.Direction == "up" {
		err = seq.MoveUp(id)
	} else {
		err = seq.MoveDown(id)
	}
	if err != nil {
		return nil, editorErr(err)
	}
	return s.saveNodes(ctx, g.Flow, seq.Nodes(), repository.FlowPatch{})
}

// DeleteNode removes a non-start node and every edge pointing at it.
func (s *Service) DeleteNode(ctx context.Context, id string) (*models.FlowWithNodes, error) {
	g, nodes, err := s.loadFlow(ctx, access.Node, id)
	if err != nil {
		return nil, err
	}
	c := flowgraph.NewCanvas(nodes)
	if err := c.RemoveNode(id); err != nil {
		return nil, editorErr(err)
	}
	return s.saveNodes(ctx, g.Flow, c.Nodes(), repository.FlowPatch{})
}
