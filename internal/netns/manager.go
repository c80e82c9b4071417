// Package netns manages named network namespaces and runs work inside
// them. Entering a namespace is a per-thread operation in Linux, so
// every entry point brackets itself with runtime.LockOSThread and
// restores the original namespace before returning.
package netns

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"syscall"

	"github.com/vishvananda/netlink"
	vnetns "github.com/vishvananda/netns"

	"grimm.is/xlatbench/internal/logging"
)

var (
	// ErrAlreadyExists means a namespace create was refused in strict
	// mode.
	ErrAlreadyExists = errors.New("namespace already exists")
	// ErrOperation marks namespace create and destroy failures so
	// callers can classify them without inspecting syscall errors.
	ErrOperation = errors.New("namespace operation failed")
)

// runDir is where iproute2 bind-mounts named namespaces.
const runDir = "/var/run/netns"

// API abstracts the netns syscall surface for testing.
type API interface {
	NewNamed(name string) (vnetns.NsHandle, error)
	DeleteNamed(name string) error
	GetFromName(name string) (vnetns.NsHandle, error)
	Get() (vnetns.NsHandle, error)
	Set(ns vnetns.NsHandle) error
}

// RealAPI is the concrete API over vishvananda/netns.
type RealAPI struct{}

func (RealAPI) NewNamed(name string) (vnetns.NsHandle, error) { return vnetns.NewNamed(name) }
func (RealAPI) DeleteNamed(name string) error                 { return vnetns.DeleteNamed(name) }
func (RealAPI) GetFromName(name string) (vnetns.NsHandle, error) {
	return vnetns.GetFromName(name)
}
func (RealAPI) Get() (vnetns.NsHandle, error)  { return vnetns.Get() }
func (RealAPI) Set(ns vnetns.NsHandle) error   { return vnetns.Set(ns) }

// setupLoopbackFunc brings up lo inside the current (just-entered)
// namespace. Overridable for tests.
var setupLoopbackFunc = func() error {
	lo, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("failed to find loopback: %w", err)
	}
	return netlink.LinkSetUp(lo)
}

// Manager creates and destroys named network namespaces.
type Manager struct {
	api API
	log *logging.Logger

	// Strict makes Create fail on an existing namespace instead of
	// replacing it.
	Strict bool
}

// NewManager returns a Manager over the real netns API.
func NewManager(log *logging.Logger) *Manager {
	return NewManagerWithAPI(RealAPI{}, log)
}

// NewManagerWithAPI returns a Manager with an injected API (tests).
func NewManagerWithAPI(api API, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.WithComponent("netns")
	}
	return &Manager{api: api, log: log}
}

// Create creates the named namespace and brings up its loopback.
// Default behavior is delete-then-create for a clean slate; in Strict
// mode an existing namespace fails with ErrAlreadyExists.
func (m *Manager) Create(name string) error {
	if m.Exists(name) {
		if m.Strict {
			return fmt.Errorf("%s: %w", name, ErrAlreadyExists)
		}
		m.log.Debug("replacing existing namespace", "name", name)
		if err := m.Destroy(name); err != nil {
			return fmt.Errorf("failed to replace namespace %s: %w", name, err)
		}
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := m.api.Get()
	if err != nil {
		return fmt.Errorf("failed to get current namespace: %w", err)
	}
	defer orig.Close()

	// NewNamed switches the calling thread into the new namespace.
	ns, err := m.api.NewNamed(name)
	if err != nil {
		return fmt.Errorf("failed to create namespace %s: %w: %w", name, ErrOperation, err)
	}
	defer ns.Close()

	loErr := setupLoopbackFunc()

	if err := m.api.Set(orig); err != nil {
		return fmt.Errorf("failed to return to original namespace: %w", err)
	}
	if loErr != nil {
		return fmt.Errorf("failed to bring up loopback in %s: %w: %w", name, ErrOperation, loErr)
	}

	m.log.Info("namespace created", "name", name)
	return nil
}

// Destroy removes the named namespace. Absence is success so teardown
// never cascades failures.
func (m *Manager) Destroy(name string) error {
	if err := m.api.DeleteNamed(name); err != nil {
		if os.IsNotExist(err) || errors.Is(err, syscall.ENOENT) {
			return nil
		}
		return fmt.Errorf("failed to destroy namespace %s: %w: %w", name, ErrOperation, err)
	}
	m.log.Info("namespace destroyed", "name", name)
	return nil
}

// Exists reports whether the named namespace exists.
func (m *Manager) Exists(name string) bool {
	ns, err := m.api.GetFromName(name)
	if err != nil {
		return false
	}
	ns.Close()
	return true
}

// List returns the named namespaces present on the host, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// InNamespace runs fn with the calling thread switched into the named
// namespace. An empty name runs fn on the host as-is. The original
// namespace is restored before returning; if restoring fails the
// thread is left locked so the runtime retires it.
func (m *Manager) InNamespace(name string, fn func() error) error {
	if name == "" {
		return fn()
	}

	runtime.LockOSThread()

	orig, err := m.api.Get()
	if err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("failed to get current namespace: %w", err)
	}
	defer orig.Close()

	target, err := m.api.GetFromName(name)
	if err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("namespace %s not found: %w", name, err)
	}
	defer target.Close()

	if err := m.api.Set(target); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("failed to enter namespace %s: %w", name, err)
	}

	fnErr := fn()

	if err := m.api.Set(orig); err != nil {
		// Do not unlock: the thread is stuck in the wrong namespace.
		return fmt.Errorf("failed to return to original namespace: %w", err)
	}
	runtime.UnlockOSThread()
	return fnErr
}
