package audio

import (
	"errors"
	"fmt"
	"strings"
)

const (
	SampleRate = 16000
	Channels   = 1
	BlockSize  = 2048 // frames per callback
)

const WAVHeaderSize = 44

var ErrCapture = errors.New("audio capture failed")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives little-endian S16 samples. data is only valid for
// the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	BlockSize  uint32
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: SampleRate, Channels: Channels, BlockSize: BlockSize}
}

type DeviceInfo struct {
	ID   string // opaque backend-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig, cb DataCallback) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop() error
	Close() error
}

// NewContext opens the named backend: "pulse", "miniaudio", or "" for the
// platform default.
func NewContext(backend string) (Context, error) {
	switch backend {
	case "pulse":
		return newPulseContext()
	case "miniaudio":
		return newMalgoContext()
	case "":
		return newDefaultContext()
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

// FindDevice returns the capture device whose name contains name, ignoring
// case. An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	want := strings.ToLower(name)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return &devices[i], nil
		}
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return nil, fmt.Errorf("no microphone matching %q (available: %s)", name, strings.Join(names, ", "))
}
