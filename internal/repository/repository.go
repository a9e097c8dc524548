// Package repository provides typed finders for each entity on top of a
// store.Backend. Callers never build criteria maps themselves.
package repository

import (
	"context"

	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/store"
)

// Repositories bundles the five entity repositories sharing one backend.
type Repositories struct {
	Users    *Users
	Projects *Projects
	Tokens   *Tokens
	Flows    *Flows
	Nodes    *Nodes
}

func New(b store.Backend) *Repositories {
	return &Repositories{
		Users:    &Users{t: store.NewTable[models.User](b.Collection(store.Users))},
		Projects: &Projects{t: store.NewTable[models.Project](b.Collection(store.Projects))},
		Tokens:   &Tokens{t: store.NewTable[models.Token](b.Collection(store.Tokens))},
		Flows:    &Flows{t: store.NewTable[models.Flow](b.Collection(store.Flows))},
		Nodes:    &Nodes{t: store.NewTable[models.Node](b.Collection(store.Nodes))},
	}
}

// Users

type Users struct {
	t *store.Table[models.User]
}

// ByID returns store.ErrNotFound when the user does not exist.
func (r *Users) ByID(ctx context.Context, id string) (*models.User, error) {
	return r.t.FindUnique(ctx, store.ByID(id))
}

func (r *Users) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.t.FindUnique(ctx, store.Criteria{"email": email})
}

func (r *Users) Create(ctx context.Context, name, email, hashedPassword string) (*models.User, error) {
	return r.t.Create(ctx, &models.User{Name: name, Email: email, Password: hashedPassword})
}

// Projects

type Projects struct {
	t *store.Table[models.Project]
}

func (r *Projects) ByID(ctx context.Context, id string) (*models.Project, error) {
	return r.t.FindUnique(ctx, store.ByID(id))
}

func (r *Projects) ListByUser(ctx context.Context, userID string) ([]models.Project, error) {
	return r.t.FindMany(ctx, store.Criteria{"userId": userID})
}

func (r *Projects) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	return r.t.Create(ctx, p)
}

// ProjectPatch lists the mutable project fields; nil fields are left alone.
type ProjectPatch struct {
	Name        *string
	Description *string
}

func (r *Projects) Update(ctx context.Context, id string, patch ProjectPatch) (*models.Project, error) {
	doc := store.Document{}
	if patch.Name != nil {
		doc["name"] = *patch.Name
	}
	if patch.Description != nil {
		doc["description"] = *patch.Description
	}
	return r.t.Update(ctx, store.ByID(id), doc)
}

func (r *Projects) Delete(ctx context.Context, id string) (bool, error) {
	return r.t.Delete(ctx, store.ByID(id))
}

// Tokens

type Tokens struct {
	t *store.Table[models.Token]
}

func (r *Tokens) ByID(ctx context.Context, id string) (*models.Token, error) {
	return r.t.FindUnique(ctx, store.ByID(id))
}

func (r *Tokens) ListByProject(ctx context.Context, projectID string) ([]models.Token, error) {
	return r.t.FindMany(ctx, store.Criteria{"projectId": projectID})
}

// ListByProjects returns the tokens of every listed project, grouped in
// project order.
func (r *Tokens) ListByProjects(ctx context.Context, projectIDs []string) ([]models.Token, error) {
	out := make([]models.Token, 0)
	for _, id := range projectIDs {
		tokens, err := r.ListByProject(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, tokens...)
	}
	return out, nil
}

func (r *Tokens) Create(ctx context.Context, tok *models.Token) (*models.Token, error) {
	return r.t.Create(ctx, tok)
}

type TokenPatch struct {
	Name        *string
	Type        *models.TokenType
	Description *string
	Format      *string
}

func (r *Tokens) Update(ctx context.Context, id string, patch TokenPatch) (*models.Token, error) {
	doc := store.Document{}
	if patch.Name != nil {
		doc["name"] = *patch.Name
	}
	if patch.Type != nil {
		doc["type"] = string(*patch.Type)
	}
	if patch.Description != nil {
		doc["description"] = *patch.Description
	}
	if patch.Format != nil {
		doc["format"] = *patch.Format
	}
	return r.t.Update(ctx, store.ByID(id), doc)
}

func (r *Tokens) Delete(ctx context.Context, id string) (bool, error) {
	return r.t.Delete(ctx, store.ByID(id))
}

func (r *Tokens) DeleteByProject(ctx context.Context, projectID string) (bool, error) {
	return r.t.Delete(ctx, store.Criteria{"projectId": projectID})
}

// Flows

type Flows struct {
	t *store.Table[models.Flow]
}

func (r *Flows) ByID(ctx context.Context, id string) (*models.Flow, error) {
	return r.t.FindUnique(ctx, store.ByID(id))
}

func (r *Flows) ListByProject(ctx context.Context, projectID string) ([]models.Flow, error) {
	return r.t.FindMany(ctx, store.Criteria{"projectId": projectID})
}

func (r *Flows) Create(ctx context.Context, f *models.Flow) (*models.Flow, error) {
	return r.t.Create(ctx, f)
}

type FlowPatch struct {
	Name        *string
	Description *string
	Version     *int
}

func (r *Flows) Update(ctx context.Context, id string, patch FlowPatch) (*models.Flow, error) {
	doc := store.Document{}
	if patch.Name != nil {
		doc["name"] = *patch.Name
	}
	if patch.Description != nil {
		doc["description"] = *patch.Description
	}
	if patch.Version != nil {
		doc["version"] = *patch.Version
	}
	return r.t.Update(ctx, store.ByID(id), doc)
}

func (r *Flows) Delete(ctx context.Context, id string) (bool, error) {
	return r.t.Delete(ctx, store.ByID(id))
}

// Nodes

type Nodes struct {
	t *store.Table[models.Node]
}

func (r *Nodes) ByID(ctx context.Context, id string) (*models.Node, error) {
	return r.t.FindUnique(ctx, store.ByID(id))
}

func (r *Nodes) ListByFlow(ctx context.Context, flowID string) ([]models.Node, error) {
	return r.t.FindMany(ctx, store.Criteria{"flowId": flowID})
}

func (r *Nodes) Create(ctx context.Context, n *models.Node) (*models.Node, error) {
	return r.t.Create(ctx, n)
}

func (r *Nodes) DeleteByFlow(ctx context.Context, flowID string) (bool, error) {
	return r.t.Delete(ctx, store.Criteria{"flowId": flowID})
}
