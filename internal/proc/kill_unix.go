//go:build unix

package proc

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcessGroup puts the child in its own process group so signals reach
// every process the engine forks.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree terminates the child's process group: SIGTERM first, SIGKILL
// after a short grace period if anything survives.
func killTree(pid int) {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		syscall.Kill(pid, syscall.SIGKILL) //nolint:errcheck
		return
	}
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if syscall.Kill(-pgid, 0) != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	syscall.Kill(-pgid, syscall.SIGKILL) //nolint:errcheck
}
