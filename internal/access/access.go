// Package access resolves the caller and checks that a resource belongs to
// one of the caller's projects before a handler touches it.
package access

import (
	"context"
	"errors"

	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/auth"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
	"github.com/ayush/ivr-designer/internal/store"
)

// Kind is a resource kind the authorizer knows how to trace to a project.
type Kind string

const (
	Project Kind = "Project"
	Flow    Kind = "Flow"
	Node    Kind = "Node"
	Token   Kind = "Token"
)

// Grant is the result of a successful check. Fields along the ownership
// chain of the requested kind are populated; the rest are nil.
type Grant struct {
	User    *models.User
	Project *models.Project
	Flow    *models.Flow
	Node    *models.Node
	Token   *models.Token
}

type Authorizer struct {
	repos *repository.Repositories
}

func NewAuthorizer(repos *repository.Repositories) *Authorizer {
	return &Authorizer{repos: repos}
}

// Caller returns the authenticated user behind ctx.
func (a *Authorizer) Caller(ctx context.Context) (*models.User, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return nil, apperr.Unauthenticated()
	}
	user, err := a.repos.Users.ByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, apperr.UserNotFound())
	}
	return user, nil
}

// Authorize checks that the resource kind/id exists and that its project is
// owned by the caller.
func (a *Authorizer) Authorize(ctx context.Context, kind Kind, id string) (*Grant, error) {
	user, err := a.Caller(ctx)
	if err != nil {
		return nil, err
	}
	g := &Grant{User: user}

	var projectID string
	switch kind {
	case Project:
		projectID = id
	case Token:
		tok, err := a.repos.Tokens.ByID(ctx, id)
		if err != nil {
			return nil, lookupErr(err, apperr.NotFound("Token"))
		}
		g.Token = tok
		projectID = tok.ProjectID
	case Node:
		node, err := a.repos.Nodes.ByID(ctx, id)
		if err != nil {
			return nil, lookupErr(err, apperr.NotFound("Node"))
		}
		g.Node = node
		id = node.FlowID
		fallthrough
	case Flow:
		flow, err := a.repos.Flows.ByID(ctx, id)
		if err != nil {
			return nil, lookupErr(err, apperr.NotFound("Flow"))
		}
		g.Flow = flow
		projectID = flow.ProjectID
	default:
		return nil, apperr.Validation("unknown resource kind %q", kind)
	}

	project, err := a.repos.Projects.ByID(ctx, projectID)
	if err != nil {
		missing := apperr.NotFound("Project")
		if kind == Token {
			missing = apperr.NotFound("Token's project")
		}
		return nil, lookupErr(err, missing)
	}
	if project.UserID != user.ID {
		return nil, apperr.Forbidden()
	}
	g.Project = project
	return g, nil
}

func lookupErr(err error, notFound *apperr.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return apperr.Storage("Internal server error", err)
}
