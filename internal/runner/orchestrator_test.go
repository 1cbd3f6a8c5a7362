package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/flowreport/internal/provider"
)

type mockFlowRunner struct {
	mock.Mock
}

func (m *mockFlowRunner) RunFlow(ctx context.Context, flow provider.Flow, dest string) (string, error) {
	args := m.Called(ctx, flow, dest)
	return args.String(0), args.Error(1)
}

func TestOrchestratorRecordsEachFlow(t *testing.T) {
	root := t.TempDir()
	flows := []provider.Flow{
		{Path: "flows/login.yaml"},
		{Path: "flows/search.yaml"},
		{Path: "flows/checkout.yml"},
	}

	fr := new(mockFlowRunner)
	fr.On("RunFlow", mock.Anything, flows[0], filepath.Join(root, "login")).
		Return(filepath.Join(root, "login", "maestro.log"), nil)
	fr.On("RunFlow", mock.Anything, flows[1], filepath.Join(root, "search")).
		Return(filepath.Join(root, "search", "maestro.log"), &FlowError{Flow: "flows/search.yaml", ExitCode: 1})
	fr.On("RunFlow", mock.Anything, flows[2], filepath.Join(root, "checkout")).
		Return("", errors.New("device offline"))

	runs, err := NewOrchestrator(fr, root, nil).Run(context.Background(), flows)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "login", runs[0].Flow)
	assert.Equal(t, RunPassed, runs[0].Status)
	assert.Equal(t, filepath.Join(root, "login", "maestro.log"), runs[0].LogPath)

	assert.Equal(t, RunFailed, runs[1].Status)
	assert.Equal(t, 1, runs[1].ExitCode)
	assert.NotEmpty(t, runs[1].LogPath)

	assert.Equal(t, RunError, runs[2].Status)
	assert.Equal(t, "device offline", runs[2].Message)

	assert.Equal(t, 2, Failed(runs))
	fr.AssertExpectations(t)
}

func TestOrchestratorDryRun(t *testing.T) {
	fr := new(mockFlowRunner)
	fr.On("RunFlow", mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	runs, err := NewOrchestrator(fr, t.TempDir(), nil).Run(context.Background(), []provider.Flow{{Path: "a.yaml"}})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunDryRun, runs[0].Status)
	assert.Equal(t, 0, Failed(runs))
}

func TestOrchestratorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fr := new(mockFlowRunner)
	fr.On("RunFlow", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("log", nil).Once()

	runs, err := NewOrchestrator(fr, t.TempDir(), nil).Run(ctx, []provider.Flow{{Path: "a.yaml"}, {Path: "b.yaml"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, runs, 1)
	fr.AssertNumberOfCalls(t, "RunFlow", 1)
}
