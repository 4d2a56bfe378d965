package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

type pulseContext struct {
	client *pulse.Client
}

func newPulseContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("keytalk"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var devices []DeviceInfo
	for _, s := range sources {
		devices = append(devices, DeviceInfo{
			ID:   s.ID(),
			Name: s.Name(),
		})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig, cb DataCallback) (CaptureDevice, error) {
	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		if len(buf) == 0 {
			return 0, nil
		}
		data := make([]byte, len(buf)*2)
		for i, s := range buf {
			data[i*2] = byte(s)
			data[i*2+1] = byte(uint16(s) >> 8)
		}
		cb(data, uint32(len(buf))/config.Channels)
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(int(config.SampleRate)),
		pulse.RecordBufferFragmentSize(config.BlockSize * config.Channels * 2),
		pulse.RecordMediaName("keytalk dictation"),
	}
	if config.Channels == 1 {
		opts = append(opts, pulse.RecordMono)
	} else {
		opts = append(opts, pulse.RecordStereo)
	}
	if device != nil {
		source, err := p.client.SourceByID(device.ID)
		if err != nil {
			return nil, fmt.Errorf("pulse source %s: %w", device.Name, err)
		}
		opts = append(opts, pulse.RecordSource(source))
	}

	stream, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse record: %w", err)
	}
	return &pulseCapture{stream: stream}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseCapture struct {
	mu     sync.Mutex
	stream *pulse.RecordStream
	closed bool
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("pulse record: stream closed")
	}
	c.stream.Start()
	return c.stream.Error()
}

func (c *pulseCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.stream.Stop()
	return c.stream.Error()
}

func (c *pulseCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stream.Close()
	return nil
}
