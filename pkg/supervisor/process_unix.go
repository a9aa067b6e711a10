//go:build !windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// processAlive reports whether pid names a live process. EPERM means it
// exists but belongs to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// detach puts the child in its own session so it outlives the command and
// does not receive the terminal's signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// terminate asks the process (and its group when it leads one) to exit
func terminate(pid int, group bool) error {
	return sendSignal(pid, group, unix.SIGTERM)
}

// kill terminates the process (and its group when it leads one) outright
func kill(pid int, group bool) error {
	return sendSignal(pid, group, unix.SIGKILL)
}

func sendSignal(pid int, group bool, sig unix.Signal) error {
	if group {
		if err := unix.Kill(-pid, sig); err == nil {
			return nil
		}
	}
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// guard is an exclusive advisory lock held across the check-then-write
// window of Start.
type guard struct {
	file *os.File
}

func acquireGuard(path string) (*guard, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return &guard{file: f}, nil
}

func (g *guard) release() {
	_ = unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	_ = g.file.Close()
}
