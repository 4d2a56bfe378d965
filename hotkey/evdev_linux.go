//go:build linux

package hotkey

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const nameLen = 256

// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
const eviocgname = 2<<30 | nameLen<<16 | 'E'<<8 | 0x06

// EvdevSource reads devices from /dev/input.
type EvdevSource struct {
	Dir string
}

func NewEvdevSource() *EvdevSource {
	return &EvdevSource{Dir: "/dev/input"}
}

func (s *EvdevSource) List() ([]string, error) {
	return filepath.Glob(filepath.Join(s.Dir, "event*"))
}

func (s *EvdevSource) Open(path string) (InputDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d := &evdevDevice{f: f, buf: make([]byte, inputEventSize*16)}
	d.name = deviceName(f, path)
	return d, nil
}

type evdevDevice struct {
	f       *os.File
	name    string
	buf     []byte
	pending []InputEvent
}

func (d *evdevDevice) Name() string { return d.name }

func (d *evdevDevice) Next() (InputEvent, error) {
	for len(d.pending) == 0 {
		n, err := d.f.Read(d.buf)
		if err != nil {
			return InputEvent{}, err
		}
		d.pending = decodeEvents(d.buf[:n], d.pending[:0])
	}
	ev := d.pending[0]
	d.pending = d.pending[1:]
	return ev, nil
}

func (d *evdevDevice) Close() error {
	return d.f.Close()
}

// deviceName asks the driver for the device name, falling back to sysfs.
// The ioctl goes through the raw conn so the descriptor stays in the
// poller and Close can interrupt a pending Read.
func deviceName(f *os.File, path string) string {
	var buf [nameLen]byte
	var errno unix.Errno
	if rc, err := f.SyscallConn(); err == nil {
		rc.Control(func(fd uintptr) {
			_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, eviocgname, uintptr(unsafe.Pointer(&buf[0])))
		})
		if errno == 0 {
			if i := bytes.IndexByte(buf[:], 0); i >= 0 {
				return string(buf[:i])
			}
			return string(buf[:])
		}
	}

	data, err := os.ReadFile(fmt.Sprintf("/sys/class/input/%s/device/name", filepath.Base(path)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
