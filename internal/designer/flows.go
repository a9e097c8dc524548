package designer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/access"
	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/flowgraph"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
	"github.com/ayush/ivr-designer/internal/saga"
	"github.com/ayush/ivr-designer/internal/store"
)

const (
	startTitle  = "Start"
	startPrompt = "Start of authentication flow"
)

func (s *Service) withNodes(ctx context.Context, f models.Flow) (*models.FlowWithNodes, error) {
	nodes, err := s.repos.Nodes.ListByFlow(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	return &models.FlowWithNodes{Flow: f, Nodes: nodes}, nil
}

// ListFlows returns every flow of a project with its nodes.
func (s *Service) ListFlows(ctx context.Context, projectID string) ([]models.FlowWithNodes, error) {
	if _, err := s.authz.Caller(ctx); err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, apperr.Validation("Project ID is required")
	}
	if _, err := s.authz.Authorize(ctx, access.Project, projectID); err != nil {
		return nil, err
	}
	flows, err := s.repos.Flows.ListByProject(ctx, projectID)
	if err != nil {
		return nil, storageErr("Failed to fetch flows", err)
	}
	out := make([]models.FlowWithNodes, 0, len(flows))
	for _, f := range flows {
		fw, err := s.withNodes(ctx, f)
		if err != nil {
			return nil, storageErr("Failed to fetch flows", err)
		}
		out = append(out, *fw)
	}
	return out, nil
}

// CreateFlow creates a flow at version 1 seeded with a single start node.
func (s *Service) CreateFlow(ctx context.Context, req models.CreateFlowRequest) (*models.FlowWithNodes, error) {
	if _, err := s.authz.Authorize(ctx, access.Project, req.ProjectID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("Name and projectId are required")
	}

	flow, err := s.repos.Flows.Create(ctx, &models.Flow{
		Name:        name,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		Version:     1,
	})
	if err != nil {
		return nil, storageErr("Failed to create flow", err)
	}
	start, err := s.repos.Nodes.Create(ctx, &models.Node{
		FlowID:      flow.ID,
		Type:        models.NodeStart,
		Title:       startTitle,
		Prompt:      startPrompt,
		Position:    models.OrdinalPosition(0),
		NextNodeIDs: []string{},
	})
	if err != nil {
		if _, derr := s.repos.Flows.Delete(ctx, flow.ID); derr != nil {
			s.logger.Error("orphaned flow after seed failure", zap.String("flow_id", flow.ID), zap.Error(derr))
		}
		return nil, storageErr("Failed to create flow", err)
	}

	out := &models.FlowWithNodes{Flow: *flow, Nodes: []models.Node{*start}}
	s.snapshot(ctx, out)
	s.logger.Info("flow created", zap.String("flow_id", flow.ID), zap.String("project_id", flow.ProjectID))
	return out, nil
}

func (s *Service) GetFlow(ctx context.Context, id string) (*models.FlowWithNodes, error) {
	g, err := s.authz.Authorize(ctx, access.Flow, id)
	if err != nil {
		return nil, err
	}
	out, err := s.withNodes(ctx, *g.Flow)
	if err != nil {
		return nil, storageErr("Failed to fetch flow", err)
	}
	return out, nil
}

func nodesPresent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// UpdateFlow changes name and description and, when nodes are present,
// replaces the whole node set.
func (s *Service) UpdateFlow(ctx context.Context, id string, req models.UpdateFlowRequest) (*models.FlowWithNodes, error) {
	g, err := s.authz.Authorize(ctx, access.Flow, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVersion(g.Flow, req.Version); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	patch := repository.FlowPatch{Name: req.Name, Description: req.Description}

	if !nodesPresent(req.Nodes) {
		flow, err := s.repos.Flows.Update(ctx, id, patch)
		if err != nil {
			return nil, storageErr("Failed to update flow", err)
		}
		out, err := s.withNodes(ctx, *flow)
		if err != nil {
			return nil, storageErr("Failed to update flow", err)
		}
		return out, nil
	}

	if err := flowgraph.ValidateDocument(req.Nodes); err != nil {
		s.metrics.FlowSaved("invalid")
		return nil, apperr.Validation("%s", err.Error())
	}
	var in []models.NodeInput
	if err := json.Unmarshal(req.Nodes, &in); err != nil {
		s.metrics.FlowSaved("invalid")
		return nil, apperr.Validation("invalid nodes: %s", err.Error())
	}
	return s.saveNodes(ctx, g.Flow, flowgraph.Flatten(id, in), patch)
}

func (s *Service) checkVersion(flow *models.Flow, version *int) error {
	if version == nil || *version == flow.Version {
		return nil
	}
	s.metrics.FlowSaved("conflict")
	return apperr.Conflict("Flow was modified by another session (version %d, you sent %d)", flow.Version, *version)
}

// saveNodes validates nodes and replaces the flow's node set with them,
// bumping the flow version. The previous set is restored if any write fails.
func (s *Service) saveNodes(ctx context.Context, flow *models.Flow, nodes []models.Node, patch repository.FlowPatch) (*models.FlowWithNodes, error) {
	if err := flowgraph.Check(nodes); err != nil {
		s.metrics.FlowSaved("invalid")
		return nil, apperr.Validation("%s", err.Error())
	}
	for _, n := range nodes {
		other, err := s.repos.Nodes.ByID(ctx, n.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storageErr("Failed to update flow", err)
		}
		if other.FlowID != flow.ID {
			s.metrics.FlowSaved("invalid")
			return nil, apperr.Validation("node id %q is already used by another flow", n.ID)
		}
	}

	previous, err := s.repos.Nodes.ListByFlow(ctx, flow.ID)
	if err != nil {
		return nil, storageErr("Failed to update flow", err)
	}

	next := flow.Version + 1
	patch.Version = &next

	var (
		saved   = make([]models.Node, 0, len(nodes))
		updated *models.Flow
	)
	sg := saga.New("save-flow-nodes", s.logger).
		AddStep(s.deleteNodesStep(flow.ID, previous)).
		AddStep(saga.Step{
			Name: "create-nodes",
			Execute: func(ctx context.Context) error {
				for i := range nodes {
					n, err := s.repos.Nodes.Create(ctx, &nodes[i])
					if err != nil {
						return err
					}
					saved = append(saved, *n)
				}
				return nil
			},
		}).
		AddStep(saga.Step{
			Name: "update-flow",
			Execute: func(ctx context.Context) error {
				var err error
				updated, err = s.repos.Flows.Update(ctx, flow.ID, patch)
				return err
			},
		})

	if err := sg.Run(ctx); err != nil {
		s.metrics.FlowSaved("error")
		return nil, storageErr("Failed to update flow", err)
	}
	s.metrics.FlowSaved("ok")

	out := &models.FlowWithNodes{Flow: *updated, Nodes: saved}
	s.snapshot(ctx, out)
	s.logger.Debug("flow nodes saved",
		zap.String("flow_id", flow.ID),
		zap.Int("version", updated.Version),
		zap.Int("nodes", len(saved)),
	)
	return out, nil
}

// DeleteFlow removes the flow's nodes, then the flow, then its snapshots.
func (s *Service) DeleteFlow(ctx context.Context, id string) error {
	g, err := s.authz.Authorize(ctx, access.Flow, id)
	if err != nil {
		return err
	}
	flow := *g.Flow
	nodes, err := s.repos.Nodes.ListByFlow(ctx, id)
	if err != nil {
		return storageErr("Failed to delete flow", err)
	}

	sg := saga.New("delete-flow", s.logger).
		AddStep(s.deleteNodesStep(id, nodes)).
		AddStep(saga.Step{
			Name: "delete-flow",
			Execute: func(ctx context.Context) error {
				_, err := s.repos.Flows.Delete(ctx, flow.ID)
				return err
			},
		})
	if err := sg.Run(ctx); err != nil {
		s.metrics.CascadeFailed("flow")
		return storageErr("Failed to delete flow", err)
	}

	s.dropSnapshots(ctx, id)
	s.logger.Info("flow deleted", zap.String("flow_id", id), zap.Int("nodes", len(nodes)))
	return nil
}

// Revision returns the archived snapshot of a flow at the given version.
func (s *Service) Revision(ctx context.Context, id string, version int) ([]byte, string, error) {
	if _, err := s.authz.Authorize(ctx, access.Flow, id); err != nil {
		return nil, "", err
	}
	if s.archive == nil {
		return nil, "", apperr.Unavailable("Flow archive is not configured")
	}
	data, contentType, err := s.archive.Get(ctx, snapshotKey(id, version))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", apperr.NotFound("Revision")
	}
	if err != nil {
		return nil, "", storageErr("Failed to fetch revision", err)
	}
	return data, contentType, nil
}
