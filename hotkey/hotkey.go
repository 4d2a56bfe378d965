// Package hotkey finds keyboard input devices and reports press/release
// edges of a single activation key across all of them.
package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"keytalk/log"
)

const (
	EvKey     = 1
	KeyUp     = 0
	KeyDown   = 1
	KeyRepeat = 2
)

// input_event is a timestamp of two kernel longs followed by type (2),
// code (2) and value (4): 24 bytes on 64-bit Linux, 16 on 32-bit.
const (
	timevalSize    = 2 * int(unsafe.Sizeof(uintptr(0)))
	inputEventSize = timevalSize + 8
)

var ErrNoKeyboard = errors.New("no keyboard found")

// Device is a keyboard-like input device.
type Device struct {
	Path string
	Name string
}

// Edge is a transition of the activation key on one device.
type Edge struct {
	Device Device
	Down   bool
}

type InputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Source enumerates input device nodes and opens them for reading.
type Source interface {
	List() ([]string, error)
	Open(path string) (InputDevice, error)
}

// InputDevice is an open device node. Next blocks until an event arrives
// or the device is closed.
type InputDevice interface {
	Name() string
	Next() (InputEvent, error)
	Close() error
}

// IsKeyboard reports whether a device identifies itself as a keyboard.
func IsKeyboard(name string) bool {
	return strings.Contains(strings.ToLower(name), "keyboard")
}

func decodeEvents(buf []byte, out []InputEvent) []InputEvent {
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		out = append(out, InputEvent{
			Type:  binary.NativeEndian.Uint16(buf[i+timevalSize:]),
			Code:  binary.NativeEndian.Uint16(buf[i+timevalSize+2:]),
			Value: int32(binary.NativeEndian.Uint32(buf[i+timevalSize+4:])),
		})
	}
	return out
}

func probe(src Source, path string) (Device, bool) {
	in, err := src.Open(path)
	if err != nil {
		log.Debugf("could not access device %s: %v", path, err)
		return Device{}, false
	}
	defer in.Close()
	name := in.Name()
	if !IsKeyboard(name) {
		return Device{}, false
	}
	return Device{Path: path, Name: name}, true
}

func matches(filter, name string) bool {
	return filter == "" || strings.EqualFold(filter, name)
}

// FindDevices returns every keyboard the source can open. A non-empty
// filter keeps only keyboards whose name equals it, ignoring case.
func FindDevices(src Source, filter string) ([]Device, error) {
	log.Info("scanning for keyboard devices")
	paths, err := src.List()
	if err != nil {
		return nil, fmt.Errorf("listing input devices: %w", err)
	}

	var matched []Device
	var available []string
	for _, path := range paths {
		dev, ok := probe(src, path)
		if !ok {
			continue
		}
		available = append(available, dev.Name)
		if matches(filter, dev.Name) {
			log.Infof("found matching keyboard: %s (%s)", dev.Name, dev.Path)
			matched = append(matched, dev)
		}
	}

	if len(matched) == 0 && filter != "" {
		list := "none"
		if len(available) > 0 {
			list = strings.Join(available, ", ")
		}
		return nil, fmt.Errorf("%w: no keyboard named %q (available keyboards: %s)", ErrNoKeyboard, filter, list)
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: no keyboard input devices accessible (is the user in the 'input' group with access to /dev/input?)", ErrNoKeyboard)
	}

	log.Infof("found %d matching keyboard devices", len(matched))
	return matched, nil
}

// Diagnose checks keyboard access and returns a status message.
func Diagnose(src Source, filter string) (string, error) {
	devices, err := FindDevices(src, filter)
	if err != nil {
		return "", err
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name + " (" + d.Path + ")"
	}
	return fmt.Sprintf("%d keyboard(s): %s", len(devices), strings.Join(names, "; ")), nil
}
