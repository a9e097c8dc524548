package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/validate"
)

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		wantErr string
	}{
		{
			name: "valid register",
			in:   models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"},
		},
		{
			name:    "missing fields",
			in:      models.RegisterRequest{},
			wantErr: "name is required; email is required; password is required",
		},
		{
			name:    "bad email",
			in:      models.RegisterRequest{Name: "Ada", Email: "ada", Password: "secret1"},
			wantErr: "email must be a valid email",
		},
		{
			name:    "token without type and project",
			in:      models.CreateTokenRequest{Name: "SSN"},
			wantErr: "type is required; projectId is required",
		},
		{
			name:    "move direction",
			in:      models.MoveNodeRequest{Direction: "left"},
			wantErr: "direction must be one of: up down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
