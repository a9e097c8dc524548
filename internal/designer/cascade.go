package designer

import (
	"context"
	"fmt"

	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/saga"
)

// Restores clear whatever a partially applied step left behind before
// re-creating the snapshot, so they can run after a step that failed half way.

func (s *Service) deleteNodesStep(flowID string, snapshot []models.Node) saga.Step {
	return saga.Step{
		Name: "delete-nodes:" + flowID,
		Execute: func(ctx context.Context) error {
			_, err := s.repos.Nodes.DeleteByFlow(ctx, flowID)
			return err
		},
		Compensate: func(ctx context.Context) error {
			return s.restoreNodes(ctx, flowID, snapshot)
		},
	}
}

func (s *Service) restoreNodes(ctx context.Context, flowID string, nodes []models.Node) error {
	if _, err := s.repos.Nodes.DeleteByFlow(ctx, flowID); err != nil {
		return err
	}
	for i := range nodes {
		if _, err := s.repos.Nodes.Create(ctx, &nodes[i]); err != nil {
			return fmt.Errorf("restore node %s: %w", nodes[i].ID, err)
		}
	}
	return nil
}

func (s *Service) restoreTokens(ctx context.Context, tokens []models.Token) error {
	for i := range tokens {
		if _, err := s.repos.Tokens.Delete(ctx, tokens[i].ID); err != nil {
			return err
		}
		if _, err := s.repos.Tokens.Create(ctx, &tokens[i]); err != nil {
			return fmt.Errorf("restore token %s: %w", tokens[i].ID, err)
		}
	}
	return nil
}

func (s *Service) restoreFlows(ctx context.Context, flows []models.Flow) error {
	for i := range flows {
		if _, err := s.repos.Flows.Delete(ctx, flows[i].ID); err != nil {
			return err
		}
		if _, err := s.repos.Flows.Create(ctx, &flows[i]); err != nil {
			return fmt.Errorf("restore flow %s: %w", flows[i].ID, err)
		}
	}
	return nil
}
