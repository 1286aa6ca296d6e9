package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile records the process ID of a running girder daemon so that
// `girder stop` can find and signal it later.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile rooted at path. Nothing is written until
// Write is called.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the file path backing p.
func (p *PIDFile) Path() string { return p.path }

// Write records the current process ID, creating parent directories as
// needed.
func (p *PIDFile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.path)
}

// ReadPID returns the process ID recorded in the file at path.
func ReadPID(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("pid file %s holds invalid pid %d", path, pid)
	}
	return pid, nil
}

// SignalPIDFile delivers sig to the process recorded in the PID file at
// path.
func SignalPIDFile(path string, sig syscall.Signal) error {
	if path == "" {
		return fmt.Errorf("pid file path is empty")
	}
	pid, err := ReadPID(path)
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	return nil
}
