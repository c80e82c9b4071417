package netns

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	vnetns "github.com/vishvananda/netns"
)

// MockAPI is a mock implementation of the API interface.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) NewNamed(name string) (vnetns.NsHandle, error) {
	args := m.Called(name)
	return args.Get(0).(vnetns.NsHandle), args.Error(1)
}

func (m *MockAPI) DeleteNamed(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockAPI) GetFromName(name string) (vnetns.NsHandle, error) {
	args := m.Called(name)
	return args.Get(0).(vnetns.NsHandle), args.Error(1)
}

func (m *MockAPI) Get() (vnetns.NsHandle, error) {
	args := m.Called()
	return args.Get(0).(vnetns.NsHandle), args.Error(1)
}

func (m *MockAPI) Set(ns vnetns.NsHandle) error {
	args := m.Called(ns)
	return args.Error(0)
}

const none = vnetns.NsHandle(-1)

// fakeHandle returns an NsHandle backed by a throwaway fd, so code
// under test can Close it without touching anything that matters.
func fakeHandle(t *testing.T) vnetns.NsHandle {
	t.Helper()
	f, err := os.Open(os.DevNull)
	require.NoError(t, err)
	// The code under test owns the fd from here; anything it does not
	// close is reclaimed when the test process exits.
	return vnetns.NsHandle(f.Fd())
}

func stubLoopback(t *testing.T) *int {
	t.Helper()
	calls := 0
	prev := setupLoopbackFunc
	setupLoopbackFunc = func() error {
		calls++
		return nil
	}
	t.Cleanup(func() { setupLoopbackFunc = prev })
	return &calls
}

func TestCreateFreshNamespace(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)
	loCalls := stubLoopback(t)

	orig, created := fakeHandle(t), fakeHandle(t)
	api.On("GetFromName", "tayga-ns").Return(none, syscall.ENOENT).Once()
	api.On("Get").Return(orig, nil).Once()
	api.On("NewNamed", "tayga-ns").Return(created, nil).Once()
	api.On("Set", orig).Return(nil).Once()

	require.NoError(t, m.Create("tayga-ns"))
	assert.Equal(t, 1, *loCalls)
	api.AssertExpectations(t)
}

func TestCreateReplacesExistingByDefault(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)
	stubLoopback(t)

	existing, orig, created := fakeHandle(t), fakeHandle(t), fakeHandle(t)
	api.On("GetFromName", "tayga-ns").Return(existing, nil).Once()
	api.On("DeleteNamed", "tayga-ns").Return(nil).Once()
	api.On("Get").Return(orig, nil).Once()
	api.On("NewNamed", "tayga-ns").Return(created, nil).Once()
	api.On("Set", orig).Return(nil).Once()

	require.NoError(t, m.Create("tayga-ns"))
	api.AssertExpectations(t)
}

func TestCreateStrictFailsOnExisting(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)
	m.Strict = true

	api.On("GetFromName", "tayga-ns").Return(fakeHandle(t), nil).Once()

	err := m.Create("tayga-ns")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	api.AssertNotCalled(t, "NewNamed", mock.Anything)
}

func TestDestroyAbsentIsSuccess(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)

	api.On("DeleteNamed", "gone").Return(syscall.ENOENT).Once()
	assert.NoError(t, m.Destroy("gone"))
}

func TestDestroyPropagatesOtherErrors(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)

	api.On("DeleteNamed", "busy").Return(syscall.EBUSY).Once()
	err := m.Destroy("busy")
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrOperation)
	assert.ErrorIs(t, err, syscall.EBUSY)
}

func TestCreateFailureIsClassified(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)

	api.On("GetFromName", "tayga-ns").Return(none, syscall.ENOENT).Once()
	api.On("Get").Return(fakeHandle(t), nil).Once()
	api.On("NewNamed", "tayga-ns").Return(none, syscall.EPERM).Once()

	err := m.Create("tayga-ns")
	assert.ErrorIs(t, err, ErrOperation)
	assert.ErrorIs(t, err, syscall.EPERM)
}

func TestInNamespaceHostShortCircuits(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)

	ran := false
	require.NoError(t, m.InNamespace("", func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	api.AssertNotCalled(t, "Set", mock.Anything)
}

func TestInNamespaceEntersAndRestores(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)

	orig, target := fakeHandle(t), fakeHandle(t)
	api.On("Get").Return(orig, nil).Once()
	api.On("GetFromName", "tayga-ns").Return(target, nil).Once()
	api.On("Set", target).Return(nil).Once()
	api.On("Set", orig).Return(nil).Once()

	ran := false
	require.NoError(t, m.InNamespace("tayga-ns", func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	api.AssertExpectations(t)
}

func TestInNamespaceMissingNamespace(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)

	api.On("Get").Return(fakeHandle(t), nil).Once()
	api.On("GetFromName", "ghost").Return(none, syscall.ENOENT).Once()

	err := m.InNamespace("ghost", func() error { return nil })
	assert.Error(t, err)
	api.AssertNotCalled(t, "Set", mock.Anything)
}

func TestInNamespacePropagatesFnError(t *testing.T) {
	api := new(MockAPI)
	m := NewManagerWithAPI(api, nil)

	orig, target := fakeHandle(t), fakeHandle(t)
	api.On("Get").Return(orig, nil).Once()
	api.On("GetFromName", "tayga-ns").Return(target, nil).Once()
	api.On("Set", target).Return(nil).Once()
	api.On("Set", orig).Return(nil).Once()

	wantErr := syscall.EPERM
	err := m.InNamespace("tayga-ns", func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}
