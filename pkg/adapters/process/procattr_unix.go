//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup makes cancellation kill the whole process tree.
// Build wrappers (yarn, gradlew) fork children that would otherwise keep the pipes open.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
