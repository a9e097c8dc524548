package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/ivr-designer/internal/access"
	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/auth"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
	"github.com/ayush/ivr-designer/internal/store"
)

type fixture struct {
	repos   *repository.Repositories
	authz   *access.Authorizer
	owner   *models.User
	other   *models.User
	project *models.Project
	flow    *models.Flow
	node    *models.Node
	token   *models.Token
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := repository.New(store.NewMemoryBackend())
	f := &fixture{repos: repos, authz: access.NewAuthorizer(repos)}

	var err error
	f.owner, err = repos.Users.Create(ctx, "Owner", "owner@example.com", "x")
	require.NoError(t, err)
	f.other, err = repos.Users.Create(ctx, "Other", "other@example.com", "x")
	require.NoError(t, err)
	f.project, err = repos.Projects.Create(ctx, &models.Project{Name: "Bank IVR", UserID: f.owner.ID})
	require.NoError(t, err)
	f.flow, err = repos.Flows.Create(ctx, &models.Flow{Name: "Login", ProjectID: f.project.ID, Version: 1})
	require.NoError(t, err)
	f.node, err = repos.Nodes.Create(ctx, &models.Node{FlowID: f.flow.ID, Type: models.NodeStart, Title: "Start"})
	require.NoError(t, err)
	f.token, err = repos.Tokens.Create(ctx, &models.Token{Name: "SSN", Type: models.TokenSSN, ProjectID: f.project.ID})
	require.NoError(t, err)
	return f
}

func as(userID string) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

func TestAuthorizeOwner(t *testing.T) {
	f := setup(t)
	ctx := as(f.owner.ID)

	g, err := f.authz.Authorize(ctx, access.Project, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, f.project.ID, g.Project.ID)
	assert.Nil(t, g.Flow)

	g, err = f.authz.Authorize(ctx, access.Flow, f.flow.ID)
	require.NoError(t, err)
	assert.Equal(t, f.flow.ID, g.Flow.ID)
	assert.Equal(t, f.project.ID, g.Project.ID)

	g, err = f.authz.Authorize(ctx, access.Node, f.node.ID)
	require.NoError(t, err)
	assert.Equal(t, f.node.ID, g.Node.ID)
	assert.Equal(t, f.flow.ID, g.Flow.ID)
	assert.Equal(t, f.project.ID, g.Project.ID)

	g, err = f.authz.Authorize(ctx, access.Token, f.token.ID)
	require.NoError(t, err)
	assert.Equal(t, f.token.ID, g.Token.ID)
	assert.Equal(t, f.owner.ID, g.User.ID)
}

func TestAuthorizeOtherUserIsForbidden(t *testing.T) {
	f := setup(t)
	ctx := as(f.other.ID)

	for kind, id := range map[access.Kind]string{
		access.Project: f.project.ID,
		access.Flow:    f.flow.ID,
		access.Node:    f.node.ID,
		access.Token:   f.token.ID,
	} {
		_, err := f.authz.Authorize(ctx, kind, id)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), "%s: %v", kind, err)
	}
}

func TestAuthorizeFailures(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		ctx  context.Context
		kind access.Kind
		id   string
		want apperr.Kind
		msg  string
	}{
		{"no session", context.Background(), access.Project, f.project.ID, apperr.KindUnauthenticated, "Unauthorized"},
		{"user gone", as("ghost"), access.Project, f.project.ID, apperr.KindUserNotFound, "User not found"},
		{"missing project", as(f.owner.ID), access.Project, "nope", apperr.KindNotFound, "Project not found"},
		{"missing flow", as(f.owner.ID), access.Flow, "nope", apperr.KindNotFound, "Flow not found"},
		{"missing node", as(f.owner.ID), access.Node, "nope", apperr.KindNotFound, "Node not found"},
		{"missing token", as(f.owner.ID), access.Token, "nope", apperr.KindNotFound, "Token not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.authz.Authorize(tt.ctx, tt.kind, tt.id)
			e, ok := apperr.As(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, tt.want, e.Kind)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestOrphanedFlowReportsMissingProject(t *testing.T) {
	f := setup(t)
	_, err := f.repos.Projects.Delete(context.Background(), f.project.ID)
	require.NoError(t, err)

	_, err = f.authz.Authorize(as(f.owner.ID), access.Flow, f.flow.ID)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Project not found", e.Message)
}
