// Package ctl controls the daemon process from the outside: starting it
// detached, stopping it by signal and reporting its status.
package ctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/inshproject/insh/internal/client"
	"github.com/inshproject/insh/internal/paths"
	"github.com/inshproject/insh/internal/pidfile"
)

const (
	startupWait  = 5 * time.Second
	pollInterval = 100 * time.Millisecond
)

// ErrNotRunning is returned by Stop when no daemon process exists.
var ErrNotRunning = errors.New("daemon not running")

// Status describes the daemon as seen from outside.
type Status struct {
	Running         bool
	Pid             int
	SocketReachable bool
}

// Start launches the daemon as a detached child running `<exe> run` and
// waits until its socket accepts connections. Force makes it stop a running
// daemon first.
func Start(exe string, force bool) error {
	pidPath, err := paths.PidFile()
	if err != nil {
		return err
	}
	pidf := pidfile.New(pidPath)
	if pid, alive := pidf.Alive(); alive {
		if !force {
			return fmt.Errorf("daemon already running with pid %d", pid)
		}
		if err := Stop(true, startupWait); err != nil {
			return fmt.Errorf("stopping running daemon: %w", err)
		}
	}

	cmd := exec.Command(exe, "run")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	// A new session detaches the daemon from the controlling terminal so it
	// survives the parent and never receives the terminal's signals.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning daemon: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("releasing daemon process: %w", err)
	}

	socket, err := paths.Socket()
	if err != nil {
		return err
	}
	deadline := time.Now().Add(startupWait)
	for time.Now().Before(deadline) {
		if client.Reachable(socket) {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("daemon did not come up within %s", startupWait)
}

// Stop signals the running daemon to shut down and waits for it to exit.
// Force sends SIGKILL instead of SIGTERM.
func Stop(force bool, timeout time.Duration) error {
	pidPath, err := paths.PidFile()
	if err != nil {
		return err
	}
	pidf := pidfile.New(pidPath)
	pid, err := pidf.Read()
	if err != nil {
		if errors.Is(err, pidfile.ErrNotExist) {
			return ErrNotRunning
		}
		return err
	}
	if !pidfile.ProcessAlive(pid) {
		// Stale pidfile from a daemon that died hard.
		pidf.Remove()
		return ErrNotRunning
	}

	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("signalling pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !pidfile.ProcessAlive(pid) {
			if force {
				// A killed daemon cannot clean up after itself.
				pidf.Remove()
				if socket, err := paths.Socket(); err == nil {
					os.Remove(socket)
				}
			}
			return nil
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("daemon pid %d still alive after %s", pid, timeout)
}

// Restart stops a running daemon, if any, and starts a fresh one.
func Restart(exe string, timeout time.Duration) error {
	if err := Stop(false, timeout); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return Start(exe, false)
}

// Current reports whether the daemon is running and reachable.
func Current() (Status, error) {
	pidPath, err := paths.PidFile()
	if err != nil {
		return Status{}, err
	}
	socket, err := paths.Socket()
	if err != nil {
		return Status{}, err
	}
	pid, alive := pidfile.New(pidPath).Alive()
	return Status{
		Running:         alive,
		Pid:             pid,
		SocketReachable: client.Reachable(socket),
	}, nil
}
