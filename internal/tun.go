//go:build linux && !baremetal

package internal

import (
	"fmt"
	"net/netip"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Tun is a layer-3 TUN device: it delivers and accepts raw IPv4 datagrams
// with no Ethernet framing, matching the tunnel device contract (EXTERNAL
// INTERFACES). IFF_NO_PI suppresses the kernel's 4-byte flags+protocol
// prefix, so Recv/Send operate on bare IPv4 datagrams directly.
type Tun struct {
	fd   int
	name string
}

// NewTun opens (creating if necessary) a TUN interface named name and,
// if ip is valid, brings it up and assigns ip as its address.
func NewTun(name string, ip netip.Prefix) (*Tun, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, fmt.Errorf("tun: name %q too large", name)
	}
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening tun device: %w", err)
	}
	ifr := makeifreq(name)
	ifr.setflags(uint16(unix.IFF_TUN | unix.IFF_NO_PI))
	if err := ioctl(fd, unix.TUNSETIFF, ifr.ptr()); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("creating tun interface: %w", err)
	}
	if ip.IsValid() {
		if err := exec.Command("ip", "link", "set", "dev", name, "up").Run(); err != nil {
			return nil, fmt.Errorf("bringing up %s: %w", name, err)
		}
		if err := exec.Command("ip", "addr", "add", ip.String(), "dev", name).Run(); err != nil {
			return nil, fmt.Errorf("assigning address to %s: %w", name, err)
		}
	}
	return &Tun{fd: fd, name: name}, nil
}

// Name returns the interface name this Tun was created with.
func (t *Tun) Name() string { return t.name }

// Recv reads one inbound IPv4 datagram into buf, blocking until one arrives.
func (t *Tun) Recv(buf []byte) (int, error) {
	return unix.Read(t.fd, buf)
}

// Send writes one outbound IPv4 datagram.
func (t *Tun) Send(datagram []byte) error {
	_, err := unix.Write(t.fd, datagram)
	return err
}

func (t *Tun) Close() error {
	return unix.Close(t.fd)
}

func ioctl(fd int, request uintptr, argp unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(argp))
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

func makeifreq(name string) ifreq {
	var ifr ifreq
	copy(ifr.Name[:], name)
	return ifr
}

type ifreq struct {
	Name [unix.IFNAMSIZ]byte
	Data [64]byte
}

func (ifr *ifreq) setflags(flags uint16) {
	*(*uint16)(unsafe.Pointer(&ifr.Data[0])) = flags
}

func (ifr *ifreq) ptr() unsafe.Pointer { return unsafe.Pointer(ifr) }
