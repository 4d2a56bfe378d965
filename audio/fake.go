package audio

import (
	"errors"
	"os"
	"sync"
	"time"
)

// FakeContext replays fixed PCM into every capture it opens. With
// realtime set, blocks are paced at the capture sample rate.
type FakeContext struct {
	pcm      []byte
	realtime bool

	mu       sync.Mutex
	captures []*FakeCapture

	NewErr   error
	StartErr error
	StopErr  error
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// NewFakeContextFromWAV loads a 16 kHz mono S16 WAV file, skipping the
// canonical 44-byte header.
func NewFakeContextFromWAV(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	data = data[min(len(data), WAVHeaderSize):]
	return NewFakeContext(data, realtime), nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "Fake Microphone"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig, cb DataCallback) (CaptureDevice, error) {
	if f.NewErr != nil {
		return nil, f.NewErr
	}
	c := &FakeCapture{
		pcm:      f.pcm,
		realtime: f.realtime,
		config:   config,
		cb:       cb,
		startErr: f.StartErr,
		stopErr:  f.StopErr,
	}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

// Last returns the most recently opened capture, or nil.
func (f *FakeContext) Last() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return nil
	}
	return f.captures[len(f.captures)-1]
}

// Captures reports how many captures have been opened.
func (f *FakeContext) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captures)
}

var errFakeClosed = errors.New("fake capture closed")

type FakeCapture struct {
	pcm      []byte
	realtime bool
	config   CaptureConfig
	cb       DataCallback
	startErr error
	stopErr  error

	mu      sync.Mutex
	closed  bool
	stopCh  chan struct{}
	done    chan struct{}
}

func (f *FakeCapture) blockBytes() int {
	n := int(f.config.BlockSize * f.config.Channels * 2)
	if n == 0 {
		n = BlockSize * 2
	}
	return n
}

// Emit delivers data to the callback as if the driver produced it.
func (f *FakeCapture) Emit(data []byte) {
	f.cb(data, uint32(len(data)/2))
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errFakeClosed
	}
	f.stopCh = make(chan struct{})
	f.done = make(chan struct{})
	f.mu.Unlock()

	chunk := f.blockBytes()
	if !f.realtime {
		for pos := 0; pos < len(f.pcm); pos += chunk {
			f.Emit(f.pcm[pos:min(pos+chunk, len(f.pcm))])
		}
		close(f.done)
		return nil
	}

	rate := f.config.SampleRate
	if rate == 0 {
		rate = SampleRate
	}
	interval := time.Duration(chunk/2) * time.Second / time.Duration(rate)
	go func() {
		defer close(f.done)
		for pos := 0; pos < len(f.pcm); pos += chunk {
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
			f.Emit(f.pcm[pos:min(pos+chunk, len(f.pcm))])
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() error {
	f.mu.Lock()
	stopCh, done := f.stopCh, f.done
	f.mu.Unlock()
	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
		<-done
	}
	return f.stopErr
}

func (f *FakeCapture) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
