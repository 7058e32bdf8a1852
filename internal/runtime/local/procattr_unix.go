//go:build unix

package local

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the command in its own process group and kills the
// whole group on cancellation, so children spawned by the job die with it.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
