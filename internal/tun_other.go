//go:build !linux || baremetal

package internal

import (
	"errors"
	"net/netip"
)

// Tun is unavailable outside Linux; TUN device creation needs the
// TUNSETIFF ioctl, which has no portable equivalent.
type Tun struct{}

func NewTun(name string, ip netip.Prefix) (*Tun, error) {
	return nil, errors.ErrUnsupported
}

func (t *Tun) Name() string { return "" }

func (t *Tun) Recv(buf []byte) (int, error) {
	return -1, errors.ErrUnsupported
}

func (t *Tun) Send(datagram []byte) error {
	return errors.ErrUnsupported
}

func (t *Tun) Close() error {
	return errors.ErrUnsupported
}
