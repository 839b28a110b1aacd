//go:build darwin || linux || freebsd

package process

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so a terminate
// request also reaches anything the script started
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// terminate sends SIGTERM to the child's group when it leads one, and to
// the child alone otherwise
func terminate(h *Handle) error {
	pid := h.cmd.Process.Pid

	if h.group {
		if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
			if err := syscall.Kill(-pgid, syscall.SIGTERM); err == nil {
				return nil
			}
		}
	}

	return h.cmd.Process.Signal(syscall.SIGTERM)
}
