package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleManager(t *testing.T) {
	cfg := testConfig(t)
	d, _ := createTestDaemon(t, cfg)

	lm := NewLifecycleManager(d)
	assert.Equal(t, filepath.Join(cfg.DataDir, "chatgateway.pid"), lm.pidFile)
}

func TestLifecycleStartStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = filepath.Join(cfg.DataDir, "nested")
	d, _ := createTestDaemon(t, cfg)
	lm := d.lifecycle

	require.NoError(t, lm.Start())

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, lm.IsRunning())

	require.NoError(t, lm.Stop())
	assert.False(t, lm.IsRunning())

	// removing twice is fine
	require.NoError(t, lm.Stop())
}

func TestLifecycleRefusesSecondDaemon(t *testing.T) {
	cfg := testConfig(t)
	d, _ := createTestDaemon(t, cfg)

	// PID 1 is always alive on Unix
	require.NoError(t, os.WriteFile(PIDFilePath(cfg.DataDir), []byte("1"), 0644))
	if !ProcessAlive(1) {
		t.Skip("cannot signal PID 1")
	}

	err := d.lifecycle.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another daemon is running")
}

func TestLifecycleStalePIDFile(t *testing.T) {
	cfg := testConfig(t)
	d, _ := createTestDaemon(t, cfg)

	require.NoError(t, os.WriteFile(PIDFilePath(cfg.DataDir), []byte("999999999"), 0644))

	require.NoError(t, d.lifecycle.Start())
	defer d.lifecycle.Stop()

	pid, err := ReadPID(PIDFilePath(cfg.DataDir))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPID(filepath.Join(dir, "missing.pid"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("abc"), 0644))
	_, err = ReadPID(bad)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.pid")
	require.NoError(t, os.WriteFile(good, []byte("42\n"), 0644))
	pid, err := ReadPID(good)
	require.NoError(t, err)
	assert.Equal(t, 42, pid)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-5))
}
