//go:build !linux

package hotkey

import "errors"

var errUnsupported = errors.New("evdev input is only available on linux")

type EvdevSource struct {
	Dir string
}

func NewEvdevSource() *EvdevSource {
	return &EvdevSource{Dir: "/dev/input"}
}

func (s *EvdevSource) List() ([]string, error) {
	return nil, errUnsupported
}

func (s *EvdevSource) Open(path string) (InputDevice, error) {
	return nil, errUnsupported
}
