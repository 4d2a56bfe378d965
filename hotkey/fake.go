package hotkey

import (
	"errors"
	"sort"
	"sync"
)

var ErrClosed = errors.New("device closed")

// FakeSource is an in-memory Source for tests.
type FakeSource struct {
	mu      sync.Mutex
	devices map[string]*FakeDevice
	ListErr error
}

func NewFakeSource() *FakeSource {
	return &FakeSource{devices: make(map[string]*FakeDevice)}
}

// Add registers a device node. OpenErr on the result makes Open fail.
func (s *FakeSource) Add(path, name string) *FakeDevice {
	d := &FakeDevice{name: name, events: make(chan fakeItem, 64)}
	s.mu.Lock()
	s.devices[path] = d
	s.mu.Unlock()
	return d
}

func (s *FakeSource) List() ([]string, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.devices))
	for p := range s.devices {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *FakeSource) Open(path string) (InputDevice, error) {
	s.mu.Lock()
	d, ok := s.devices[path]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("no such device: " + path)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.opens++
	return &fakeHandle{dev: d, closed: make(chan struct{})}, nil
}

type fakeItem struct {
	ev  InputEvent
	err error
}

// FakeDevice queues events that any open handle can read.
type FakeDevice struct {
	mu      sync.Mutex
	name    string
	events  chan fakeItem
	opens   int
	OpenErr error
}

func (d *FakeDevice) Emit(typ, code uint16, value int32) {
	d.events <- fakeItem{ev: InputEvent{Type: typ, Code: code, Value: value}}
}

func (d *FakeDevice) Press(code uint16)   { d.Emit(EvKey, code, KeyDown) }
func (d *FakeDevice) Release(code uint16) { d.Emit(EvKey, code, KeyUp) }
func (d *FakeDevice) Repeat(code uint16)  { d.Emit(EvKey, code, KeyRepeat) }

// Fail makes the next read return err.
func (d *FakeDevice) Fail(err error) {
	d.events <- fakeItem{err: err}
}

// Opens reports how many times the device has been opened.
func (d *FakeDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

type fakeHandle struct {
	dev    *FakeDevice
	closed chan struct{}
	once   sync.Once
}

func (h *fakeHandle) Name() string { return h.dev.name }

func (h *fakeHandle) Next() (InputEvent, error) {
	select {
	case <-h.closed:
		return InputEvent{}, ErrClosed
	default:
	}
	select {
	case it := <-h.dev.events:
		return it.ev, it.err
	case <-h.closed:
		return InputEvent{}, ErrClosed
	}
}

func (h *fakeHandle) Close() error {
	h.once.Do(func() { close(h.closed) })
	return nil
}
