package models

import "time"

// Project groups flows and tokens and belongs to exactly one user.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectDetail is a project with its flows and tokens, as returned by
// GET /api/projects/{id}.
type ProjectDetail struct {
	Project
	Flows  []Flow  `json:"flows"`
	Tokens []Token `json:"tokens"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateProjectRequest only changes the fields that are present.
type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// FlowRef is the short flow reference listed under each project.
type FlowRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectSummary is a project as listed on the dashboard.
type ProjectSummary struct {
	Project
	Flows []FlowRef `json:"flows"`
}
