package xlat

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/xlatbench/internal/config"
	"grimm.is/xlatbench/internal/network"
)

// hostStarter launches the command where the test already runs.
type hostStarter struct{}

func (hostStarter) StartIn(_ string, cmd *exec.Cmd) error { return cmd.Start() }

// stubAdapter lets lifecycle tests run harmless binaries instead of
// real translators.
type stubAdapter struct {
	bin  string
	args []string
}

func (a stubAdapter) binary() string                        { return a.bin }
func (stubAdapter) renderConf(config.Translator) string     { return "stub\n" }
func (stubAdapter) mktunArgs(confPath string) []string      { return []string{"--mktun", confPath} }
func (a stubAdapter) runArgs(string) []string               { return a.args }
func (stubAdapter) deviceRoutes(config.Translator) []string { return nil }
func (stubAdapter) dataDir() string                         { return "" }

func nat64Config() config.Translator {
	return config.Translator{
		Kind:   "nat64-tayga",
		Device: "nat64",
		Prefix: "64:ff9b::/96",
		IPv4:   "192.168.255.1",
		IPv6:   "fd00:64::1",
		Pool:   "192.168.255.0/24",
		MTU:    1500,
		TTL:    64,
	}
}

func testDeps(t *testing.T) (Deps, *network.MockNetlinker, *network.MockExecer) {
	t.Helper()
	t.Setenv("XLATBENCH_STATE_DIR", t.TempDir())

	nl := new(network.MockNetlinker)
	nl.On("Close").Return()
	prov := new(network.MockHandleProvider)
	prov.On("At", mock.Anything).Return(nl, nil)
	ex := new(network.MockExecer)

	deps := Deps{
		Exec:         ex,
		Links:        network.NewLinkManager(prov, nil),
		Routes:       network.NewRouteManager(prov, nil, func(_ string, fn func() error) error { return fn() }, nil),
		Starter:      hostStarter{},
		ConfDir:      t.TempDir(),
		StartTimeout: 2 * time.Second,
		StopTimeout:  time.Second,
	}
	return deps, nl, ex
}

func deviceUp(nl *network.MockNetlinker, name string) netlink.Link {
	link := &netlink.Tuntap{LinkAttrs: netlink.LinkAttrs{Name: name, Index: 9}}
	nl.On("LinkByName", name).Return(link, nil)
	nl.On("AddrList", link, mock.Anything).Return([]netlink.Addr{}, nil)
	return link
}

func TestNewFillsDepDefaults(t *testing.T) {
	t.Setenv("XLATBENCH_STATE_DIR", t.TempDir())
	s, err := New("xlat-ns", nat64Config(), Deps{Starter: hostStarter{}})
	require.NoError(t, err)

	assert.Same(t, network.DefaultExecer, s.deps.Exec)
	assert.Equal(t, defaultStartTimeout, s.deps.StartTimeout)
	assert.Equal(t, defaultStopTimeout, s.deps.StopTimeout)
	assert.NotEmpty(t, s.deps.ConfDir)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	deps, _, _ := testDeps(t)
	_, err := New("xlat-ns", config.Translator{Kind: "jool"}, deps)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigureWritesConfig(t *testing.T) {
	deps, _, _ := testDeps(t)
	s, err := New("xlat-ns", nat64Config(), deps)
	require.NoError(t, err)

	require.NoError(t, s.Configure())
	assert.Equal(t, StateConfigWritten, s.State())

	data, err := os.ReadFile(filepath.Join(deps.ConfDir, "xlat-ns-nat64-tayga.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "tun-device nat64")
	assert.Contains(t, string(data), "dynamic-pool 192.168.255.0/24")
}

func TestConfigureRejectsInvalidTranslator(t *testing.T) {
	deps, _, _ := testDeps(t)
	cfg := nat64Config()
	cfg.Prefix = "not-a-prefix"
	s, err := New("xlat-ns", cfg, deps)
	require.NoError(t, err)

	err = s.Configure()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, StateUnconfigured, s.State())
}

func TestCreateDeviceRequiresConfig(t *testing.T) {
	deps, _, _ := testDeps(t)
	s, err := New("xlat-ns", nat64Config(), deps)
	require.NoError(t, err)

	assert.ErrorIs(t, s.CreateDevice(), ErrOutOfOrder)
}

func TestCreateDevice(t *testing.T) {
	deps, nl, ex := testDeps(t)
	s, err := New("xlat-ns", nat64Config(), deps)
	require.NoError(t, err)
	require.NoError(t, s.Configure())

	ex.On("Run", "xlat-ns", "tayga", "--mktun", "-c", s.ConfPath()).Return("", nil).Once()
	link := &netlink.Tuntap{LinkAttrs: netlink.LinkAttrs{Name: "nat64", Index: 9}}
	nl.On("LinkByName", "nat64").Return(link, nil)
	nl.On("LinkSetUp", link).Return(nil).Once()
	nl.On("RouteAdd", mock.Anything).Return(nil).Times(2)

	require.NoError(t, s.CreateDevice())
	assert.Equal(t, StateDeviceCreated, s.State())
	ex.AssertExpectations(t)
	nl.AssertExpectations(t)
}

func TestCreateDeviceMktunFailure(t *testing.T) {
	deps, _, ex := testDeps(t)
	s, err := New("xlat-ns", nat64Config(), deps)
	require.NoError(t, err)
	require.NoError(t, s.Configure())

	ex.On("Run", "xlat-ns", "tayga", "--mktun", "-c", s.ConfPath()).
		Return("tun open failed", assert.AnError).Once()

	err = s.CreateDevice()
	assert.ErrorIs(t, err, ErrDeviceCreate)
	assert.Equal(t, StateConfigWritten, s.State())
}

func TestStartRequiresDevice(t *testing.T) {
	deps, _, _ := testDeps(t)
	s, err := New("xlat-ns", nat64Config(), deps)
	require.NoError(t, err)
	require.NoError(t, s.Configure())

	assert.ErrorIs(t, s.Start(context.Background()), ErrOutOfOrder)
}

func TestStartBecomesRunningAndStops(t *testing.T) {
	deps, nl, _ := testDeps(t)
	deviceUp(nl, "nat64")

	s := newSupervisor("xlat-ns", nat64Config(), stubAdapter{bin: "sleep", args: []string{"60"}}, deps)
	s.state = StateDeviceCreated
	s.confPath = filepath.Join(deps.ConfDir, "stub.conf")

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.State())
	assert.NotZero(t, s.Pid())

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())
	assert.Zero(t, s.Pid())
}

func TestStartFailsWhenProcessExitsEarly(t *testing.T) {
	deps, nl, _ := testDeps(t)
	// Device never shows up, so readiness cannot win the race against
	// the exiting process.
	nl.On("LinkByName", "nat64").Return(nil, netlink.LinkNotFoundError{})

	s := newSupervisor("xlat-ns", nat64Config(), stubAdapter{bin: "true"}, deps)
	s.state = StateDeviceCreated

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStartTimeout)
	assert.Equal(t, StateStopped, s.State())
}

func TestStartTimesOutAndKills(t *testing.T) {
	deps, nl, _ := testDeps(t)
	deps.StartTimeout = 200 * time.Millisecond
	nl.On("LinkByName", "nat64").Return(nil, netlink.LinkNotFoundError{})

	s := newSupervisor("xlat-ns", nat64Config(), stubAdapter{bin: "sleep", args: []string{"60"}}, deps)
	s.state = StateDeviceCreated

	start := time.Now()
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrStartTimeout)
	assert.Equal(t, StateStopped, s.State())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStopIsLegalFromAnyState(t *testing.T) {
	deps, _, _ := testDeps(t)

	s, err := New("xlat-ns", nat64Config(), deps)
	require.NoError(t, err)
	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())

	// Once stopped, the lifecycle does not resume.
	assert.ErrorIs(t, s.CreateDevice(), ErrOutOfOrder)
	assert.ErrorIs(t, s.Start(context.Background()), ErrOutOfOrder)

	s2, err := New("xlat-ns", nat64Config(), deps)
	require.NoError(t, err)
	require.NoError(t, s2.Configure())
	require.NoError(t, s2.Stop())
	assert.Equal(t, StateStopped, s2.State())
}
