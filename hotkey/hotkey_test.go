package hotkey

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEdge(t *testing.T, w *Watcher) Edge {
	t.Helper()
	select {
	case e, ok := <-w.Edges():
		require.True(t, ok, "edges closed")
		return e
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for edge")
	}
	return Edge{}
}

func expectNoEdge(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case e := <-w.Edges():
		assert.Failf(t, "unexpected edge", "%+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func expectClosed(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case _, ok := <-w.Edges():
		assert.False(t, ok, "expected closed channel")
	case <-time.After(time.Second):
		require.FailNow(t, "edges not closed")
	}
}

func TestIsKeyboard(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"AT Translated Set 2 keyboard", true},
		{"Logitech USB KEYBOARD", true},
		{"Logitech USB Receiver Mouse", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsKeyboard(tt.name), "IsKeyboard(%q)", tt.name)
	}
}

func TestFindDevicesAllKeyboards(t *testing.T) {
	src := NewFakeSource()
	src.Add("/dev/input/event0", "AT Translated Set 2 keyboard")
	src.Add("/dev/input/event1", "USB Optical Mouse")
	src.Add("/dev/input/event2", "Keychron K2 Keyboard")
	src.Add("/dev/input/event3", "Locked Keyboard").OpenErr = os.ErrPermission

	got, err := FindDevices(src, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/dev/input/event0", got[0].Path)
	assert.Equal(t, "/dev/input/event2", got[1].Path)
}

func TestFindDevicesFilter(t *testing.T) {
	src := NewFakeSource()
	src.Add("/dev/input/event0", "AT Translated Set 2 keyboard")
	src.Add("/dev/input/event2", "Keychron K2 Keyboard")

	got, err := FindDevices(src, "keychron k2 keyboard")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Keychron K2 Keyboard", got[0].Name)
}

func TestFindDevicesFilterNoMatch(t *testing.T) {
	src := NewFakeSource()
	src.Add("/dev/input/event0", "AT Translated Set 2 keyboard")

	_, err := FindDevices(src, "Keychron")
	require.ErrorIs(t, err, ErrNoKeyboard)
	assert.Contains(t, err.Error(), "AT Translated Set 2 keyboard", "error should list available keyboards")
}

func TestFindDevicesNone(t *testing.T) {
	src := NewFakeSource()
	src.Add("/dev/input/event1", "USB Optical Mouse")

	_, err := FindDevices(src, "")
	assert.ErrorIs(t, err, ErrNoKeyboard)
}

func TestFindDevicesListError(t *testing.T) {
	src := NewFakeSource()
	src.ListErr = errors.New("boom")
	_, err := FindDevices(src, "")
	assert.Error(t, err)
}

func TestDiagnose(t *testing.T) {
	src := NewFakeSource()
	src.Add("/dev/input/event0", "AT Translated Set 2 keyboard")
	msg, err := Diagnose(src, "")
	require.NoError(t, err)
	assert.Contains(t, msg, "1 keyboard(s)")
	assert.Contains(t, msg, "/dev/input/event0")
}

func TestDecodeEvents(t *testing.T) {
	put := func(buf []byte, typ, code uint16, value uint32) {
		binary.NativeEndian.PutUint16(buf[timevalSize:], typ)
		binary.NativeEndian.PutUint16(buf[timevalSize+2:], code)
		binary.NativeEndian.PutUint32(buf[timevalSize+4:], value)
	}
	buf := make([]byte, inputEventSize*2+5)
	put(buf, EvKey, 126, KeyDown)
	put(buf[inputEventSize:], 4, 4, 0xFFFFFFFF)

	evs := decodeEvents(buf, nil)
	require.Len(t, evs, 2, "trailing partial record should be ignored")
	assert.Equal(t, InputEvent{Type: EvKey, Code: 126, Value: 1}, evs[0])
	assert.Equal(t, int32(-1), evs[1].Value)
}

func TestInputEventSize(t *testing.T) {
	switch strconv.IntSize {
	case 64:
		assert.Equal(t, 24, inputEventSize)
	case 32:
		assert.Equal(t, 16, inputEventSize)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
	}{
		{"KEY_RIGHTMETA", 126},
		{"rightmeta", 126},
		{" key_f13 ", 183},
		{"97", 97},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if assert.NoError(t, err, "ParseKey(%q)", tt.in) {
			assert.Equal(t, tt.want, got, "ParseKey(%q)", tt.in)
		}
	}

	for _, bad := range []string{"", "KEY_NOPE", "70000"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, "ParseKey(%q) should fail", bad)
	}
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "KEY_RIGHTMETA", KeyName(126))
	assert.Equal(t, "9999", KeyName(9999))
}

func TestWatcherEdges(t *testing.T) {
	src := NewFakeSource()
	kb := src.Add("/dev/input/event0", "Test Keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(src, 126)
	w.Start(ctx, []Device{{Path: "/dev/input/event0", Name: "Test Keyboard"}})

	kb.Press(30)   // other key
	kb.Press(126)  // down
	kb.Repeat(126) // ignored
	kb.Repeat(126)
	kb.Emit(4, 126, 1) // not EV_KEY
	kb.Release(126)

	e := waitEdge(t, w)
	assert.True(t, e.Down, "first edge should be down")
	assert.Equal(t, "/dev/input/event0", e.Device.Path)
	assert.False(t, waitEdge(t, w).Down, "second edge should be up")
	expectNoEdge(t, w)
}

func TestWatcherMultipleDevices(t *testing.T) {
	src := NewFakeSource()
	a := src.Add("/dev/input/event0", "A Keyboard")
	b := src.Add("/dev/input/event1", "B Keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(src, 126)
	w.Start(ctx, []Device{
		{Path: "/dev/input/event0", Name: "A Keyboard"},
		{Path: "/dev/input/event1", Name: "B Keyboard"},
	})

	a.Press(126)
	e := waitEdge(t, w)
	assert.Equal(t, "/dev/input/event0", e.Device.Path)
	assert.True(t, e.Down)

	b.Press(126)
	e = waitEdge(t, w)
	assert.Equal(t, "/dev/input/event1", e.Device.Path)
	assert.True(t, e.Down)
}

func TestWatcherDeviceFailureIsolated(t *testing.T) {
	src := NewFakeSource()
	a := src.Add("/dev/input/event0", "A Keyboard")
	b := src.Add("/dev/input/event1", "B Keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(src, 126)
	w.Start(ctx, []Device{
		{Path: "/dev/input/event0", Name: "A Keyboard"},
		{Path: "/dev/input/event1", Name: "B Keyboard"},
	})

	a.Fail(errors.New("unplugged"))
	time.Sleep(20 * time.Millisecond)

	b.Press(126)
	assert.Equal(t, "/dev/input/event1", waitEdge(t, w).Device.Path)
}

func TestWatcherClosesWhenAllDevicesEnd(t *testing.T) {
	src := NewFakeSource()
	a := src.Add("/dev/input/event0", "A Keyboard")

	w := NewWatcher(src, 126)
	w.Start(context.Background(), []Device{{Path: "/dev/input/event0", Name: "A Keyboard"}})

	a.Fail(errors.New("unplugged"))
	expectClosed(t, w)
}

func TestWatcherOpenFailure(t *testing.T) {
	src := NewFakeSource()
	src.Add("/dev/input/event0", "A Keyboard").OpenErr = os.ErrPermission

	w := NewWatcher(src, 126)
	w.Start(context.Background(), []Device{{Path: "/dev/input/event0", Name: "A Keyboard"}})
	expectClosed(t, w)
}

func TestWatcherCancel(t *testing.T) {
	src := NewFakeSource()
	src.Add("/dev/input/event0", "A Keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(src, 126)
	w.Start(ctx, []Device{{Path: "/dev/input/event0", Name: "A Keyboard"}})

	cancel()
	expectClosed(t, w)
}

func TestWatcherIgnoresDuplicateDevice(t *testing.T) {
	src := NewFakeSource()
	kb := src.Add("/dev/input/event0", "A Keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := Device{Path: "/dev/input/event0", Name: "A Keyboard"}
	w := NewWatcher(src, 126)
	w.Start(ctx, []Device{dev, dev})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, kb.Opens())
}

func TestWatcherHotplug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "event7")

	src := NewFakeSource()
	kb := src.Add(path, "Hotplugged Keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(src, 126)
	w.settle = 0
	w.EnableHotplug(dir, "")
	w.Start(ctx, nil)

	// settle hotplug watcher registration
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, nil, 0644))

	kb.Press(126)
	e := waitEdge(t, w)
	assert.Equal(t, path, e.Device.Path)
	assert.True(t, e.Down)
}

func TestWatcherHotplugFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "event8")

	src := NewFakeSource()
	kb := src.Add(path, "Other Keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(src, 126)
	w.settle = 0
	w.EnableHotplug(dir, "Wanted Keyboard")
	w.Start(ctx, nil)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, nil, 0644))
	time.Sleep(50 * time.Millisecond)

	// the name lookup opens once; no monitor is started
	assert.Equal(t, 1, kb.Opens())
}
