package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFileWriteAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "girder.pid")
	pf := NewPIDFile(path)
	assert.Equal(t, path, pf.Path())

	require.NoError(t, pf.Write())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, pf.Remove())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadPID(filepath.Join(dir, "absent.pid"))
		assert.ErrorContains(t, err, "read pid file")
	})

	t.Run("garbage content", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pid")
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
		_, err := ReadPID(path)
		assert.ErrorContains(t, err, "parse pid file")
	})

	t.Run("non-positive pid", func(t *testing.T) {
		path := filepath.Join(dir, "zero.pid")
		require.NoError(t, os.WriteFile(path, []byte("0\n"), 0o644))
		_, err := ReadPID(path)
		assert.ErrorContains(t, err, "invalid pid")
	})

	t.Run("valid pid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.pid")
		require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))
		pid, err := ReadPID(path)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})
}

func TestSignalPIDFile(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		err := SignalPIDFile("", syscall.SIGTERM)
		assert.ErrorContains(t, err, "pid file path is empty")
	})

	t.Run("missing file", func(t *testing.T) {
		err := SignalPIDFile(filepath.Join(t.TempDir(), "absent.pid"), syscall.SIGTERM)
		assert.ErrorContains(t, err, "read pid file")
	})

	t.Run("stale pid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stale.pid")
		require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))
		err := SignalPIDFile(path, syscall.SIGTERM)
		assert.ErrorContains(t, err, "signal process")
	})

	t.Run("signal self with harmless signal", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "self.pid")
		require.NoError(t, NewPIDFile(path).Write())
		// Signal 0 performs the permission and existence checks without
		// delivering anything.
		assert.NoError(t, SignalPIDFile(path, syscall.Signal(0)))
	})
}
