package netns

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
)

// ExecIn runs a command to completion inside the named namespace and
// returns its combined output. The child is started while the calling
// thread sits in the target namespace, which it then inherits for its
// whole lifetime. Exit status errors are propagated.
func (m *Manager) ExecIn(ctx context.Context, name string, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err := m.InNamespace(name, func() error {
		return cmd.Start()
	})
	if err != nil {
		return "", fmt.Errorf("failed to start %v in %q: %w", argv, name, err)
	}

	if err := cmd.Wait(); err != nil {
		return out.String(), fmt.Errorf("command %v in %q failed: %w, output: %s",
			argv, name, err, out.String())
	}
	return out.String(), nil
}

// StartIn starts a prepared command inside the named namespace without
// waiting for it. The caller owns the process from then on.
func (m *Manager) StartIn(name string, cmd *exec.Cmd) error {
	return m.InNamespace(name, func() error {
		return cmd.Start()
	})
}

// Run implements the network.Execer interface on top of ExecIn, so
// components that only need "run this tool, maybe in a namespace" can
// take the small interface.
func (m *Manager) Run(namespace string, name string, arg ...string) (string, error) {
	return m.ExecIn(context.Background(), namespace, append([]string{name}, arg...)...)
}
