//go:build windows

package proc

import (
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on Windows; engines are terminated directly.
func setProcessGroup(cmd *exec.Cmd) {}

// killTree kills the direct child. Grandchildren are not tracked on
// Windows.
func killTree(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		p.Kill() //nolint:errcheck
	}
}
