// Package paths computes the per-user filesystem locations used by insh and
// the inshd daemon.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

const (
	// DirPerm is the permission for the insh directories (owner only).
	DirPerm = 0o700
	// FilePerm is the permission for files in the insh directories.
	FilePerm = 0o600
)

// baseDir can be overridden in tests.
var baseDir string

// InshDir returns the directory insh-related files are stored in for the
// current user (~/.insh by default).
func InshDir() (string, error) {
	if baseDir != "" {
		return baseDir, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".insh"), nil
}

// DaemonDir returns the directory inshd keeps its runtime files in.
func DaemonDir() (string, error) {
	dir, err := InshDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon"), nil
}

// Socket returns the path of the inshd Unix socket.
func Socket() (string, error) {
	dir, err := DaemonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "inshd.sock"), nil
}

// PidFile returns the path of the inshd pid file.
func PidFile() (string, error) {
	dir, err := InshDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "inshd.pid"), nil
}

// LogsDir returns the directory inshd logs are written to.
func LogsDir() (string, error) {
	dir, err := DaemonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// ConfigFile returns the path of the insh config file.
func ConfigFile() (string, error) {
	dir, err := InshDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureDirs creates the insh directories with owner-only permissions if they
// do not exist yet.
func EnsureDirs() error {
	for _, f := range []func() (string, error){InshDir, DaemonDir, LogsDir} {
		dir, err := f()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, DirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SetBaseDir overrides the insh base directory. Intended for tests.
func SetBaseDir(dir string) {
	baseDir = dir
}
