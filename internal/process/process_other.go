//go:build !(darwin || linux || freebsd)

package process

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// terminate kills the child; there is no SIGTERM to deliver here
func terminate(h *Handle) error {
	return h.cmd.Process.Kill()
}
