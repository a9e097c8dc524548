package designer

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/access"
	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
)

func parseTokenType(s string) (models.TokenType, error) {
	t, ok := models.ParseTokenType(s)
	if !ok {
		return "", apperr.Validation("invalid token type %q", s)
	}
	return t, nil
}

func checkFormat(format string) error {
	if format == "" {
		return nil
	}
	if _, err := regexp.Compile(format); err != nil {
		return apperr.Validation("format is not a valid regular expression: %s", err.Error())
	}
	return nil
}

// ProjectTokens returns the tokens of one project.
func (s *Service) ProjectTokens(ctx context.Context, projectID string) ([]models.Token, error) {
	if _, err := s.authz.Authorize(ctx, access.Project, projectID); err != nil {
		return nil, err
	}
	tokens, err := s.repos.Tokens.ListByProject(ctx, projectID)
	if err != nil {
		return nil, storageErr("Failed to fetch tokens", err)
	}
	return tokens, nil
}

// AllTokens returns the tokens of every project the caller owns, each with
// a reference to its project.
func (s *Service) AllTokens(ctx context.Context) ([]models.TokenWithProject, error) {
	user, err := s.authz.Caller(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.repos.Projects.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, storageErr("Failed to fetch tokens", err)
	}

	refs := make(map[string]models.ProjectRef, len(projects))
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		refs[p.ID] = models.ProjectRef{ID: p.ID, Name: p.Name}
		ids = append(ids, p.ID)
	}
	tokens, err := s.repos.Tokens.ListByProjects(ctx, ids)
	if err != nil {
		return nil, storageErr("Failed to fetch tokens", err)
	}

	out := make([]models.TokenWithProject, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, models.TokenWithProject{Token: t, Project: refs[t.ProjectID]})
	}
	return out, nil
}

func (s *Service) CreateToken(ctx context.Context, req models.CreateTokenRequest) (*models.Token, error) {
	typ, err := parseTokenType(req.Type)
	if err != nil {
		return nil, err
	}
	if err := checkFormat(req.Format); err != nil {
		return nil, err
	}
	if _, err := s.authz.Authorize(ctx, access.Project, req.ProjectID); err != nil {
		return nil, err
	}

	tok, err := s.repos.Tokens.Create(ctx, &models.Token{
		Name:        strings.TrimSpace(req.Name),
		Type:        typ,
		Description: req.Description,
		Format:      req.Format,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		return nil, storageErr("Failed to create token", err)
	}
	s.logger.Info("token created", zap.String("token_id", tok.ID), zap.String("project_id", tok.ProjectID))
	return tok, nil
}

func (s *Service) GetToken(ctx context.Context, id string) (*models.Token, error) {
	g, err := s.authz.Authorize(ctx, access.Token, id)
	if err != nil {
		return nil, err
	}
	return g.Token, nil
}

func (s *Service) UpdateToken(ctx context.Context, id string, req models.UpdateTokenRequest) (*models.Token, error) {
	if _, err := s.authz.Authorize(ctx, access.Token, id); err != nil {
		return nil, err
	}
	patch := repository.TokenPatch{Name: req.Name, Description: req.Description, Format: req.Format}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if req.Type != nil {
		typ, err := parseTokenType(*req.Type)
		if err != nil {
			return nil, err
		}
		patch.Type = &typ
	}
	if req.Format != nil {
		if err := checkFormat(*req.Format); err != nil {
			return nil, err
		}
	}

	tok, err := s.repos.Tokens.Update(ctx, id, patch)
	if err != nil {
		return nil, storageErr("Failed to update token", err)
	}
	return tok, nil
}

// DeleteToken removes the token. Nodes that reference it keep the dangling id.
func (s *Service) DeleteToken(ctx context.Context, id string) error {
	if _, err := s.authz.Authorize(ctx, access.Token, id); err != nil {
		return err
	}
	if _, err := s.repos.Tokens.Delete(ctx, id); err != nil {
		return storageErr("Failed to delete token", err)
	}
	return nil
}
