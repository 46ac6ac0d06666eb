package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockController implements Controller
type MockController struct {
	mock.Mock
}

func (m *MockController) Suspend(ctx context.Context, autoResume bool) error {
	args := m.Called(ctx, autoResume)
	return args.Error(0)
}

func (m *MockController) Resume(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockController) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestRunKeys_Commands(t *testing.T) {
	ctl := new(MockController)
	ctl.On("Suspend", mock.Anything, false).Return(nil)
	ctl.On("Resume", mock.Anything).Return(nil)
	ctl.On("Reset", mock.Anything).Return(nil)

	var buf bytes.Buffer
	quit, err := runKeys(context.Background(), strings.NewReader("s\n\nR\nx\nq\ns\n"), ctl, &buf)

	assert.NoError(t, err)
	assert.True(t, quit)
	assert.Contains(t, buf.String(), "✓ Meter suspended")
	assert.Contains(t, buf.String(), "✓ Meter resumed")
	assert.Contains(t, buf.String(), "✓ Meter reset")
	ctl.AssertNumberOfCalls(t, "Suspend", 1)
	ctl.AssertExpectations(t)
}

func TestRunKeys_UnknownKeyPrintsHelp(t *testing.T) {
	ctl := new(MockController)

	var buf bytes.Buffer
	quit, err := runKeys(context.Background(), strings.NewReader("help\n"), ctl, &buf)

	assert.NoError(t, err)
	assert.False(t, quit, "EOF is not a quit request")
	assert.Contains(t, buf.String(), keysHelp)
	ctl.AssertExpectations(t)
}

func TestRunKeys_Error(t *testing.T) {
	ctl := new(MockController)
	ctl.On("Reset", mock.Anything).Return(errors.New("engine stopped"))

	var buf bytes.Buffer
	_, err := runKeys(context.Background(), strings.NewReader("x\n"), ctl, &buf)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "engine stopped")
	assert.NotContains(t, buf.String(), "✓")
}

func TestRunValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpsmeter.yml")
	require.NoError(t, os.WriteFile(path, []byte("dpsmeter:\n  capture:\n    port: 16000\n"), 0644))

	var buf bytes.Buffer
	require.NoError(t, runValidate(path, true, &buf))
	assert.Contains(t, buf.String(), "VALID: backend pcap, port 16000")
	assert.Contains(t, buf.String(), "dpsmeter:")
	assert.Contains(t, buf.String(), "port: 16000")
}

func TestRunValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpsmeter.yml")
	require.NoError(t, os.WriteFile(path, []byte("dpsmeter:\n  log:\n    level: loud\n"), 0644))

	var buf bytes.Buffer
	assert.Error(t, runValidate(path, false, &buf))
	assert.Empty(t, buf.String())
}
