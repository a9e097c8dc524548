package models

import (
	"strings"
	"time"
)

// TokenType classifies the sensitive value a token stands for.
type TokenType string

const (
	TokenSSN           TokenType = "SSN"
	TokenPIN           TokenType = "PIN"
	TokenAccountNumber TokenType = "ACCOUNT_NUMBER"
	TokenDebitCard     TokenType = "DEBIT_CARD"
	TokenDOB           TokenType = "DOB"
	TokenPassword      TokenType = "PASSWORD"
	TokenCustom        TokenType = "CUSTOM"
	TokenOther         TokenType = "OTHER"
)

var tokenTypes = map[string]TokenType{
	"SSN":            TokenSSN,
	"PIN":            TokenPIN,
	"ACCOUNT_NUMBER": TokenAccountNumber,
	"ACCOUNT":        TokenAccountNumber,
	"DEBIT_CARD":     TokenDebitCard,
	"CARD":           TokenDebitCard,
	"DOB":            TokenDOB,
	"PASSWORD":       TokenPassword,
	"CUSTOM":         TokenCustom,
	"OTHER":          TokenOther,
}

// ParseTokenType accepts the canonical names plus the short forms the
// designer UI sends (ACCOUNT, CARD), case-insensitively.
func ParseTokenType(s string) (TokenType, bool) {
	t, ok := tokenTypes[strings.ToUpper(strings.TrimSpace(s))]
	return t, ok
}

// Token is a reusable definition of a sensitive field a flow collects or
// validates. Nodes reference it by id without referential integrity.
type Token struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        TokenType `json:"type"`
	Description string    `json:"description,omitempty"`
	Format      string    `json:"format,omitempty"`
	ProjectID   string    `json:"projectId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectRef is the short project reference attached to tokens listed
// across all of a user's projects.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TokenWithProject struct {
	Token
	Project ProjectRef `json:"project"`
}

type CreateTokenRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Type        string `json:"type" validate:"required"`
	Description string `json:"description" validate:"max=2000"`
	Format      string `json:"format" validate:"max=500"`
	ProjectID   string `json:"projectId" validate:"required"`
}

type UpdateTokenRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Type        *string `json:"type"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Format      *string `json:"format" validate:"omitempty,max=500"`
}
