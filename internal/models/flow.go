package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// NodeType is the kind of step a node performs.
type NodeType string

const (
	NodeStart    NodeType = "start"
	NodePrompt   NodeType = "prompt"
	NodeCollect  NodeType = "collect"
	NodeValidate NodeType = "validate"
	NodeBranch   NodeType = "branch"
	NodeEnd      NodeType = "end"
)

// NodeTypes lists every valid node type in palette order.
var NodeTypes = []NodeType{NodeStart, NodePrompt, NodeCollect, NodeValidate, NodeBranch, NodeEnd}

func (t NodeType) Valid() bool {
	for _, v := range NodeTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Layout of ordinal positions when they are stored as coordinates.
const (
	SequenceX       = 250
	SequenceTop     = 100
	SequenceSpacing = 120
)

// Position is the canonical stored node position: a canvas coordinate.
//
// The sequential editor sends a bare integer ordinal instead; UnmarshalJSON
// converts it to the coordinate of that slot in a vertical column, so both
// encodings end up stored the same way.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OrdinalPosition returns the coordinate used for sequence slot i.
func OrdinalPosition(i int) Position {
	return Position{X: SequenceX, Y: float64(SequenceTop + i*SequenceSpacing)}
}

func (p *Position) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = Position{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var xy struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := json.Unmarshal(data, &xy); err != nil {
			return fmt.Errorf("position: %w", err)
		}
		*p = Position{X: xy.X, Y: xy.Y}
		return nil
	}
	var ordinal float64
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return fmt.Errorf("position must be {x, y} or an integer ordinal: %w", err)
	}
	if ordinal < 0 || ordinal != float64(int(ordinal)) {
		return fmt.Errorf("position ordinal must be a non-negative integer, got %v", ordinal)
	}
	*p = OrdinalPosition(int(ordinal))
	return nil
}

// Flow is a named authentication dialogue. Its nodes are stored separately
// and attached in FlowWithNodes.
type Flow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ProjectID   string    `json:"projectId"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type FlowWithNodes struct {
	Flow
	Nodes []Node `json:"nodes"`
}

// Node is one step of a flow. NextNodeIDs is ordered; for branch nodes the
// index is the option number. TokenID is a soft reference.
type Node struct {
	ID              string          `json:"id"`
	FlowID          string          `json:"flowId"`
	Type            NodeType        `json:"type"`
	Title           string          `json:"title"`
	Prompt          string          `json:"prompt,omitempty"`
	Position        Position        `json:"position"`
	TokenID         string          `json:"tokenId,omitempty"`
	ValidationRules json.RawMessage `json:"validationRules,omitempty"`
	NextNodeIDs     []string        `json:"nextNodeIds"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NodeInput is the persisted node shape clients submit on save.
type NodeInput struct {
	ID              string          `json:"id"`
	Type            NodeType        `json:"type"`
	Title           string          `json:"title"`
	Prompt          string          `json:"prompt"`
	Position        *Position       `json:"position"`
	TokenID         string          `json:"tokenId"`
	ValidationRules json.RawMessage `json:"validationRules"`
	NextNodeIDs     []string        `json:"nextNodeIds"`
}

type CreateFlowRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	ProjectID   string `json:"projectId" validate:"required"`
}

// UpdateFlowRequest changes the present fields. Nodes, when present, replace
// the whole node set. Version, when present, must match the stored version.
type UpdateFlowRequest struct {
	Name        *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	Nodes       json.RawMessage `json:"nodes"`
	Version     *int            `json:"version"`
}

type ConnectRequest struct {
	Source  string `json:"source" validate:"required"`
	Target  string `json:"target" validate:"required"`
	Version *int   `json:"version"`
}

type AddNodeRequest struct {
	Type            NodeType        `json:"type" validate:"required,oneof=prompt collect validate branch end"`
	Title           string          `json:"title" validate:"max=200"`
	Prompt          string          `json:"prompt"`
	TokenID         string          `json:"tokenId"`
	ValidationRules json.RawMessage `json:"validationRules"`
	Position        *Position       `json:"position"`
	Version         *int            `json:"version"`
}

type MoveNodeRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
	Version   *int   `json:"version"`
}
