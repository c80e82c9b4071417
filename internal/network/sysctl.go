package network

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultSysctler is the default RealSysctler instance.
var DefaultSysctler Sysctler = &RealSysctler{}

// DefaultExecer is the default RealExecer instance.
var DefaultExecer Execer = &RealExecer{}

// RealSysctler reads and writes sysctls through /proc/sys.
type RealSysctler struct{}

// ReadSysctl reads a sysctl value from the specified path.
func (r *RealSysctler) ReadSysctl(path string) (string, error) {
	data, err := os.ReadFile(sysctlPath(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSysctl writes a sysctl value to the specified path.
func (r *RealSysctler) WriteSysctl(path, value string) error {
	return os.WriteFile(sysctlPath(path), []byte(value), 0644)
}

// sysctlPath converts dotted notation to a /proc/sys path.
func sysctlPath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/proc/sys/" + strings.ReplaceAll(path, ".", "/")
}

// RealExecer runs commands with os/exec, entering the target namespace
// through `ip netns exec` when one is named. The netns manager offers
// an in-process alternative for callers that already hold a handle;
// this path is for plain external tools.
type RealExecer struct{}

// Run runs a command and returns its combined output.
func (r *RealExecer) Run(namespace string, name string, arg ...string) (string, error) {
	argv := append([]string{name}, arg...)
	if namespace != "" {
		argv = append([]string{"ip", "netns", "exec", namespace}, argv...)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("command %v failed: %w, output: %s", argv, err, string(output))
	}
	return string(output), nil
}
