// Package xlat supervises userspace IPv4/IPv6 translator daemons
// (tayga for SIIT and stateful NAT64, tundra for CLAT) inside network
// namespaces. A supervisor walks a fixed lifecycle: write the daemon's
// config file, create its TUN device, start the process and wait for
// it to come up. Stop is legal from any state.
package xlat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"grimm.is/xlatbench/internal/brand"
	"grimm.is/xlatbench/internal/clock"
	"grimm.is/xlatbench/internal/config"
	"grimm.is/xlatbench/internal/logging"
	"grimm.is/xlatbench/internal/network"
)

var (
	// ErrInvalidConfig means the translator block cannot produce a
	// working daemon configuration.
	ErrInvalidConfig = errors.New("invalid translator configuration")
	// ErrDeviceCreate means the translator's TUN device could not be
	// created or brought up.
	ErrDeviceCreate = errors.New("translator device creation failed")
	// ErrStartTimeout means the daemon gave no sign of life in time and
	// was killed.
	ErrStartTimeout = errors.New("translator start timed out")
	// ErrOutOfOrder means a lifecycle step was attempted before its
	// prerequisite step.
	ErrOutOfOrder = errors.New("lifecycle step out of order")
)

// State is a point in the supervisor lifecycle.
type State string

const (
	StateUnconfigured  State = "unconfigured"
	StateConfigWritten State = "config-written"
	StateDeviceCreated State = "device-created"
	StateRunning       State = "running"
	StateStopped       State = "stopped"
)

const (
	defaultStartTimeout = 10 * time.Second
	defaultStopTimeout  = 3 * time.Second
	readyPollInterval   = 50 * time.Millisecond
)

// Starter launches a prepared command inside a namespace. Satisfied by
// netns.Manager.
type Starter interface {
	StartIn(namespace string, cmd *exec.Cmd) error
}

// adapter is the per-tool half of a supervisor: it knows the binary,
// its config file dialect and which prefixes get routed into the
// translator device.
type adapter interface {
	binary() string
	renderConf(cfg config.Translator) string
	mktunArgs(confPath string) []string
	runArgs(confPath string) []string
	deviceRoutes(cfg config.Translator) []string
	dataDir() string
}

// Deps carries the collaborators a Supervisor needs.
type Deps struct {
	Exec    network.Execer
	Links   *network.LinkManager
	Routes  *network.RouteManager
	Starter Starter

	// ConfDir is where generated daemon configs land. Defaults to the
	// run directory.
	ConfDir string

	StartTimeout time.Duration
	StopTimeout  time.Duration

	Log *logging.Logger
}

// Supervisor drives one translator daemon in one namespace.
type Supervisor struct {
	Namespace string

	cfg  config.Translator
	ad   adapter
	deps Deps

	mu       sync.Mutex
	state    State
	confPath string
	cmd      *exec.Cmd
	done     chan error
}

// New returns a supervisor for the translator kind named in cfg.
func New(namespace string, cfg config.Translator, deps Deps) (*Supervisor, error) {
	var ad adapter
	switch cfg.Kind {
	case "siit":
		ad = taygaAdapter{mode: taygaSIIT}
	case "nat64-tayga":
		ad = taygaAdapter{mode: taygaNAT64}
	case "clat-tundra":
		ad = tundraAdapter{}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, cfg.Kind)
	}
	return newSupervisor(namespace, cfg, ad, deps), nil
}

func newSupervisor(namespace string, cfg config.Translator, ad adapter, deps Deps) *Supervisor {
	if deps.Exec == nil {
		deps.Exec = network.DefaultExecer
	}
	if deps.ConfDir == "" {
		deps.ConfDir = brand.GetRunDir()
	}
	if deps.StartTimeout == 0 {
		deps.StartTimeout = defaultStartTimeout
	}
	if deps.StopTimeout == 0 {
		deps.StopTimeout = defaultStopTimeout
	}
	if deps.Log == nil {
		deps.Log = logging.WithComponent("xlat")
	}
	return &Supervisor{
		Namespace: namespace,
		cfg:       cfg,
		ad:        ad,
		deps:      deps,
		state:     StateUnconfigured,
	}
}

// Kind returns the translator kind this supervisor drives.
func (s *Supervisor) Kind() string { return s.cfg.Kind }

// Device returns the translator's TUN device name.
func (s *Supervisor) Device() string { return s.cfg.Device }

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pid returns the daemon's pid, or 0 when no process is running.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ConfPath returns the path of the generated config file, empty before
// Configure has run.
func (s *Supervisor) ConfPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confPath
}

// Configure validates the translator block and writes the daemon's
// config file.
func (s *Supervisor) Configure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(s.deps.ConfDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if dir := s.ad.dataDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	path := filepath.Join(s.deps.ConfDir, s.Namespace+"-"+s.cfg.Kind+".conf")
	if err := os.WriteFile(path, []byte(s.ad.renderConf(s.cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.confPath = path
	s.state = StateConfigWritten
	s.deps.Log.Debug("translator config written",
		"namespace", s.Namespace, "kind", s.cfg.Kind, "path", path)
	return nil
}

// CreateDevice makes the translator's TUN device inside the namespace,
// brings it up and installs the routes that steer traffic into it.
func (s *Supervisor) CreateDevice() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigWritten {
		return fmt.Errorf("%w: device creation requires a written config (state %s)",
			ErrOutOfOrder, s.state)
	}

	out, err := s.deps.Exec.Run(s.Namespace, s.ad.binary(), s.ad.mktunArgs(s.confPath)...)
	if err != nil {
		return fmt.Errorf("%w: %v, output: %s", ErrDeviceCreate, err, out)
	}
	if err := s.deps.Links.SetUp(s.Namespace, s.cfg.Device); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceCreate, err)
	}
	for _, dst := range s.ad.deviceRoutes(s.cfg) {
		if err := s.deps.Routes.AddDeviceRoute(s.Namespace, dst, s.cfg.Device); err != nil {
			return fmt.Errorf("failed to route %s into %s: %w", dst, s.cfg.Device, err)
		}
	}

	s.state = StateDeviceCreated
	s.deps.Log.Debug("translator device created",
		"namespace", s.Namespace, "device", s.cfg.Device)
	return nil
}

// Start launches the daemon in the namespace and waits until it looks
// alive: the process still running and its device reachable. Fails with
// ErrStartTimeout (after killing the process) when that never happens.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDeviceCreated {
		return fmt.Errorf("%w: start requires a created device (state %s)",
			ErrOutOfOrder, s.state)
	}

	var out bytes.Buffer
	cmd := exec.Command(s.ad.binary(), s.ad.runArgs(s.confPath)...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := s.deps.Starter.StartIn(s.Namespace, cmd); err != nil {
		return fmt.Errorf("failed to start %s in %q: %w", s.ad.binary(), s.Namespace, err)
	}
	s.cmd = cmd
	s.done = make(chan error, 1)
	go func() { s.done <- cmd.Wait() }()

	deadline := clock.Now().Add(s.deps.StartTimeout)
	tick := time.NewTicker(readyPollInterval)
	defer tick.Stop()

	for {
		select {
		case err := <-s.done:
			s.cmd = nil
			s.done = nil
			s.state = StateStopped
			return fmt.Errorf("%s exited during startup: %v, output: %s",
				s.ad.binary(), err, out.String())
		case <-ctx.Done():
			s.killLocked()
			<-s.done
			s.cmd = nil
			s.done = nil
			s.state = StateStopped
			return fmt.Errorf("%w: %v", ErrStartTimeout, ctx.Err())
		case <-tick.C:
			if s.readyLocked() {
				s.state = StateRunning
				s.deps.Log.Info("translator running", "namespace", s.Namespace,
					"kind", s.cfg.Kind, "pid", cmd.Process.Pid)
				return nil
			}
			if clock.Now().After(deadline) {
				s.killLocked()
				<-s.done
				s.cmd = nil
				s.done = nil
				s.state = StateStopped
				return fmt.Errorf("%w: %s gave no sign of life within %s, output: %s",
					ErrStartTimeout, s.ad.binary(), s.deps.StartTimeout, out.String())
			}
		}
	}
}

// Stop terminates the daemon if one is running and moves the supervisor
// to Stopped. Legal from any state; a supervisor that never started
// just records the transition.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() { s.state = StateStopped }()

	if s.cmd == nil || s.cmd.Process == nil || s.done == nil {
		return nil
	}

	// Terminate the whole process group so daemon children die with it.
	_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-s.done:
	case <-time.After(s.deps.StopTimeout):
		s.killLocked()
		<-s.done
	}
	s.deps.Log.Info("translator stopped", "namespace", s.Namespace, "kind", s.cfg.Kind)
	s.cmd = nil
	s.done = nil
	return nil
}

// readyLocked reports whether the daemon looks healthy: process alive
// and its TUN device queryable.
func (s *Supervisor) readyLocked() bool {
	if s.cmd == nil || s.cmd.Process == nil {
		return false
	}
	_, err := s.deps.Links.Addresses(s.Namespace, s.cfg.Device)
	return err == nil
}

func (s *Supervisor) killLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
	}
}
