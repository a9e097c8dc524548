package designer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/access"
	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
	"github.com/ayush/ivr-designer/internal/saga"
)

// ListProjects returns the caller's projects, each with its flow names.
func (s *Service) ListProjects(ctx context.Context) ([]models.ProjectSummary, error) {
	user, err := s.authz.Caller(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.repos.Projects.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, storageErr("Failed to fetch projects", err)
	}

	out := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		flows, err := s.repos.Flows.ListByProject(ctx, p.ID)
		if err != nil {
			return nil, storageErr("Failed to fetch projects", err)
		}
		refs := make([]models.FlowRef, 0, len(flows))
		for _, f := range flows {
			refs = append(refs, models.FlowRef{ID: f.ID, Name: f.Name})
		}
		out = append(out, models.ProjectSummary{Project: p, Flows: refs})
	}
	return out, nil
}

func (s *Service) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	user, err := s.authz.Caller(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("Project name is required")
	}
	p, err := s.repos.Projects.Create(ctx, &models.Project{
		Name:        name,
		Description: req.Description,
		UserID:      user.ID,
	})
	if err != nil {
		return nil, storageErr("Failed to create project", err)
	}
	s.logger.Info("project created", zap.String("project_id", p.ID), zap.String("user_id", user.ID))
	return p, nil
}

// GetProject returns the project with all of its flows and tokens.
func (s *Service) GetProject(ctx context.Context, id string) (*models.ProjectDetail, error) {
	g, err := s.authz.Authorize(ctx, access.Project, id)
	if err != nil {
		return nil, err
	}
	flows, err := s.repos.Flows.ListByProject(ctx, id)
	if err != nil {
		return nil, storageErr("Failed to fetch project", err)
	}
	tokens, err := s.repos.Tokens.ListByProject(ctx, id)
	if err != nil {
		return nil, storageErr("Failed to fetch project", err)
	}
	return &models.ProjectDetail{Project: *g.Project, Flows: flows, Tokens: tokens}, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, req models.UpdateProjectRequest) (*models.Project, error) {
	if _, err := s.authz.Authorize(ctx, access.Project, id); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.Validation("Project name is required")
	}
	p, err := s.repos.Projects.Update(ctx, id, repository.ProjectPatch{Name: req.Name, Description: req.Description})
	if err != nil {
		return nil, storageErr("Failed to update project", err)
	}
	return p, nil
}

// DeleteProject removes the project's tokens, every flow's nodes, the
// flows and finally the project. A failed step restores what the earlier
// steps removed.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	g, err := s.authz.Authorize(ctx, access.Project, id)
	if err != nil {
		return err
	}
	project := *g.Project

	tokens, err := s.repos.Tokens.ListByProject(ctx, id)
	if err != nil {
		return storageErr("Failed to delete project", err)
	}
	flows, err := s.repos.Flows.ListByProject(ctx, id)
	if err != nil {
		return storageErr("Failed to delete project", err)
	}

	sg := saga.New("delete-project", s.logger).
		AddStep(saga.Step{
			Name: "delete-tokens",
			Execute: func(ctx context.Context) error {
				_, err := s.repos.Tokens.DeleteByProject(ctx, id)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.restoreTokens(ctx, tokens)
			},
		})

	for _, f := range flows {
		nodes, err := s.repos.Nodes.ListByFlow(ctx, f.ID)
		if err != nil {
			return storageErr("Failed to delete project", err)
		}
		sg.AddStep(s.deleteNodesStep(f.ID, nodes))
	}

	sg.AddStep(saga.Step{
		Name: "delete-flows",
		Execute: func(ctx context.Context) error {
			for _, f := range flows {
				if _, err := s.repos.Flows.Delete(ctx, f.ID); err != nil {
					return err
				}
			}
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return s.restoreFlows(ctx, flows)
		},
	}).AddStep(saga.Step{
		Name: "delete-project",
		Execute: func(ctx context.Context) error {
			_, err := s.repos.Projects.Delete(ctx, project.ID)
			return err
		},
	})

	if err := sg.Run(ctx); err != nil {
		s.metrics.CascadeFailed("project")
		return storageErr("Failed to delete project", err)
	}

	for _, f := range flows {
		s.dropSnapshots(ctx, f.ID)
	}
	s.logger.Info("project deleted",
		zap.String("project_id", id),
		zap.Int("flows", len(flows)),
		zap.Int("tokens", len(tokens)),
	)
	return nil
}
