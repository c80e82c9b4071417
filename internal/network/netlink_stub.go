//go:build !linux

package network

import "fmt"

// NetlinkProvider is a stub on non-Linux platforms. The managers still
// compile (and are unit tested against mocks) but cannot touch a real
// kernel.
type NetlinkProvider struct{}

// At is not supported on this platform.
func (p *NetlinkProvider) At(namespace string) (Netlinker, error) {
	return nil, fmt.Errorf("netlink not supported on this platform")
}

// NsFd is not supported on this platform.
func (p *NetlinkProvider) NsFd(namespace string) (int, func(), error) {
	return -1, nil, fmt.Errorf("netns not supported on this platform")
}
