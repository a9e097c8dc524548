package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func recordingStep(name string, log *[]string, fail error) Step {
	return Step{
		Name: name,
		Execute: func(context.Context) error {
			*log = append(*log, "do "+name)
			return fail
		},
		Compensate: func(context.Context) error {
			*log = append(*log, "undo "+name)
			return nil
		},
	}
}

func TestRunCompletes(t *testing.T) {
	var log []string
	s := New("delete-project", zap.NewNop()).
		AddStep(recordingStep("tokens", &log, nil)).
		AddStep(recordingStep("flows", &log, nil))

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"do tokens", "do flows"}, log)
	assert.Equal(t, StateCompleted, s.State())
}

func TestRunCompensatesInReverse(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	s := New("delete-project", zap.NewNop()).
		AddStep(recordingStep("tokens", &log, nil)).
		AddStep(recordingStep("nodes", &log, nil)).
		AddStep(recordingStep("flows", &log, boom)).
		AddStep(recordingStep("project", &log, nil))

	err := s.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCompensation)
	assert.Equal(t, []string{"do tokens", "do nodes", "do flows", "undo nodes", "undo tokens"}, log)
	assert.Equal(t, StateCompensated, s.State())
}

func TestRunReportsFailedCompensation(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	undoFailed := errors.New("restore failed")

	first := recordingStep("tokens", &log, nil)
	second := recordingStep("nodes", &log, nil)
	second.Compensate = func(context.Context) error { return undoFailed }

	s := New("delete-flow", zap.NewNop()).
		AddStep(first).
		AddStep(second).
		AddStep(Step{Name: "flow", Execute: func(context.Context) error { return boom }})

	err := s.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrCompensation)
	assert.ErrorIs(t, err, undoFailed)
	assert.Contains(t, log, "undo tokens")
	assert.Equal(t, StateFailed, s.State())
}
