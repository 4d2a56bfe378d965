package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keytalk/audio"
	"keytalk/hotkey"
	"keytalk/inject"
	"keytalk/transcriber"
)

const testKey = 126

var (
	kbA = hotkey.Device{Path: "/dev/input/event0", Name: "A Keyboard"}
	kbB = hotkey.Device{Path: "/dev/input/event1", Name: "B Keyboard"}
)

type fakeRecorder struct {
	active   bool
	starts   int
	stops    int
	startErr error
	audio    []byte
	cleaned  bool
}

func (r *fakeRecorder) StartRecording() error {
	if r.active {
		return nil
	}
	if r.startErr != nil {
		return r.startErr
	}
	r.starts++
	r.active = true
	return nil
}

func (r *fakeRecorder) StopRecording() []byte {
	if !r.active {
		return nil
	}
	r.active = false
	r.stops++
	return r.audio
}

func (r *fakeRecorder) SessionID() string { return "test-session" }
func (r *fakeRecorder) Cleanup()          { r.active = false; r.cleaned = true }

type fakeSTT struct {
	text  string
	calls [][]byte
}

func (f *fakeSTT) TranscribeSession(_ context.Context, audio []byte, _ string) string {
	f.calls = append(f.calls, audio)
	return f.text
}

type fakeSink struct {
	texts []string
}

func (f *fakeSink) SendText(_ context.Context, text string) {
	f.texts = append(f.texts, text)
}

type countingCues struct{ start, stop, fail int }

func (c *countingCues) Start() { c.start++ }
func (c *countingCues) Stop()  { c.stop++ }
func (c *countingCues) Error() { c.fail++ }

func down(d hotkey.Device) hotkey.Edge { return hotkey.Edge{Device: d, Down: true} }
func up(d hotkey.Device) hotkey.Edge   { return hotkey.Edge{Device: d, Down: false} }

func TestPipelinePressRelease(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1, 2, 3, 4}}
	stt := &fakeSTT{text: "hello"}
	sink := &fakeSink{}
	cues := &countingCues{}
	p := newPipeline(rec, stt, sink)
	p.cues = cues

	ctx := context.Background()
	p.handle(ctx, down(kbA))
	assert.Equal(t, stateRecording, p.state)
	p.handle(ctx, up(kbA))
	assert.Equal(t, stateIdle, p.state)

	assert.Equal(t, [][]byte{{1, 2, 3, 4}}, stt.calls)
	assert.Equal(t, []string{"hello"}, sink.texts)
	assert.Equal(t, 1, cues.start)
	assert.Equal(t, 1, cues.stop)
	assert.Equal(t, 1, p.utterances)
}

func TestPipelineDuplicateDown(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1, 2}}
	stt := &fakeSTT{text: "x"}
	p := newPipeline(rec, stt, &fakeSink{})

	ctx := context.Background()
	p.handle(ctx, down(kbA))
	p.handle(ctx, down(kbB))
	p.handle(ctx, down(kbA))
	assert.Equal(t, 1, rec.starts)

	p.handle(ctx, up(kbB))
	p.handle(ctx, up(kbA))
	assert.Equal(t, 1, rec.stops)
	assert.Len(t, stt.calls, 1)
}

func TestPipelineUpWhileIdle(t *testing.T) {
	rec := &fakeRecorder{}
	stt := &fakeSTT{}
	p := newPipeline(rec, stt, &fakeSink{})

	p.handle(context.Background(), up(kbA))
	assert.Equal(t, 0, rec.stops)
	assert.Empty(t, stt.calls)
	assert.Equal(t, stateIdle, p.state)
}

func TestPipelineStartFailureStaysIdle(t *testing.T) {
	rec := &fakeRecorder{startErr: audio.ErrCapture}
	cues := &countingCues{}
	p := newPipeline(rec, &fakeSTT{}, &fakeSink{})
	p.cues = cues

	ctx := context.Background()
	p.handle(ctx, down(kbA))
	assert.Equal(t, stateIdle, p.state)
	assert.Equal(t, 1, cues.fail)

	// the next press tries again
	rec.startErr = nil
	p.handle(ctx, down(kbA))
	assert.Equal(t, stateRecording, p.state)
}

func TestPipelineEmptyAudioSkipsTranscription(t *testing.T) {
	rec := &fakeRecorder{}
	stt := &fakeSTT{text: "never"}
	sink := &fakeSink{}
	released := 0
	p := newPipeline(rec, stt, sink)
	p.afterRelease = func() { released++ }

	ctx := context.Background()
	p.handle(ctx, down(kbA))
	p.handle(ctx, up(kbA))

	assert.Empty(t, stt.calls)
	assert.Empty(t, sink.texts)
	assert.Equal(t, 1, released)
}

func TestPipelineEmptyTranscriptSkipsInjection(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1, 2}}
	stt := &fakeSTT{text: ""}
	sink := &fakeSink{}
	var copied []string
	p := newPipeline(rec, stt, sink)
	p.copyText = func(s string) error { copied = append(copied, s); return nil }

	ctx := context.Background()
	p.handle(ctx, down(kbA))
	p.handle(ctx, up(kbA))

	assert.Len(t, stt.calls, 1)
	assert.Empty(t, sink.texts)
	assert.Empty(t, copied)
}

func TestPipelineCopiesTranscript(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1, 2}}
	var copied []string
	p := newPipeline(rec, &fakeSTT{text: "copy me"}, &fakeSink{})
	p.copyText = func(s string) error { copied = append(copied, s); return errors.New("no clipboard") }

	ctx := context.Background()
	p.handle(ctx, down(kbA))
	p.handle(ctx, up(kbA))
	assert.Equal(t, []string{"copy me"}, copied)
}

func TestPipelineRunStopsOnClose(t *testing.T) {
	p := newPipeline(&fakeRecorder{}, &fakeSTT{}, &fakeSink{})
	edges := make(chan hotkey.Edge)
	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), edges)
		close(done)
	}()
	close(edges)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after edges closed")
	}
}

func TestPipelineRunStopsOnCancel(t *testing.T) {
	rec := &fakeRecorder{}
	p := newPipeline(rec, &fakeSTT{}, &fakeSink{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, make(chan hotkey.Edge))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	p.Close()
	assert.True(t, rec.cleaned)
}

// service is a transcription server that records every request.
type service struct {
	mu     sync.Mutex
	bodies [][]byte
	text   string
	status int
}

func (s *service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, body)
	status, text := s.status, s.text
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, `{"text": "`+text+`"}`)
}

func (s *service) requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.bodies...)
}

type harness struct {
	src     *hotkey.FakeSource
	a, b    *hotkey.FakeDevice
	actx    *audio.FakeContext
	svc     *service
	sender  *inject.RecordingSender
	handled chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func newHarness(t *testing.T, pcm []byte, text string) *harness {
	t.Helper()
	h := &harness{
		src:     hotkey.NewFakeSource(),
		actx:    audio.NewFakeContext(pcm, false),
		svc:     &service{text: text},
		sender:  &inject.RecordingSender{},
		handled: make(chan struct{}, 8),
		done:    make(chan struct{}),
	}
	h.a = h.src.Add(kbA.Path, kbA.Name)
	h.b = h.src.Add(kbB.Path, kbB.Name)

	srv := httptest.NewServer(h.svc)
	t.Cleanup(srv.Close)

	injector, err := inject.New("us", h.sender)
	require.NoError(t, err)
	client := transcriber.New(transcriber.Options{BaseURL: srv.URL, Language: "en"})

	p := newPipeline(audio.NewRecorder(h.actx, nil), client, injector)
	p.afterRelease = func() { h.handled <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	w := hotkey.NewWatcher(h.src, testKey)
	w.Start(ctx, []hotkey.Device{kbA, kbB})

	go func() {
		defer close(h.done)
		p.Run(ctx, w.Edges())
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
		p.Close()
	})
	return h
}

func (h *harness) waitHandled(t *testing.T) {
	t.Helper()
	select {
	case <-h.handled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for release to be handled")
	}
}

func tokens(calls [][]inject.KeyEvent) []string {
	var out []string
	for _, c := range calls {
		out = append(out, strings.Join(inject.Tokens(c), " "))
	}
	return out
}

func TestEndToEndSingleUtterance(t *testing.T) {
	pcm := make([]byte, 3200)
	h := newHarness(t, pcm, "Hi")

	h.a.Press(testKey)
	h.a.Repeat(testKey)
	h.a.Release(testKey)
	h.waitHandled(t)

	reqs := h.svc.requests()
	require.Len(t, reqs, 1)
	assert.Len(t, reqs[0], 3200)
	assert.Equal(t, []string{"42:1 35:1 35:0 42:0 23:1 23:0 57:1 57:0"}, tokens(h.sender.Calls()))
}

func TestEndToEndCrossDevice(t *testing.T) {
	h := newHarness(t, make([]byte, 64), "ok")

	// down on A, second down on B is ignored, up on B ends the recording
	h.a.Press(testKey)
	time.Sleep(20 * time.Millisecond)
	h.b.Press(testKey)
	time.Sleep(20 * time.Millisecond)
	h.b.Release(testKey)
	h.waitHandled(t)

	// the trailing up on A arrives while idle
	h.a.Release(testKey)
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, h.svc.requests(), 1)
	assert.Len(t, h.sender.Calls(), 1)
	assert.Equal(t, 1, h.actx.Captures())
}

func TestEndToEndServiceFailure(t *testing.T) {
	h := newHarness(t, make([]byte, 64), "unused")
	h.svc.mu.Lock()
	h.svc.status = http.StatusInternalServerError
	h.svc.mu.Unlock()

	h.a.Press(testKey)
	h.a.Release(testKey)
	h.waitHandled(t)

	assert.Len(t, h.svc.requests(), 1)
	assert.Empty(t, h.sender.Calls())
}

func TestEndToEndEmptyRecording(t *testing.T) {
	h := newHarness(t, nil, "unused")

	h.a.Press(testKey)
	h.a.Release(testKey)
	h.waitHandled(t)

	assert.Empty(t, h.svc.requests())
	assert.Empty(t, h.sender.Calls())
}

func TestEndToEndSequentialUtterances(t *testing.T) {
	h := newHarness(t, make([]byte, 64), "a")

	for i := 0; i < 3; i++ {
		h.a.Press(testKey)
		h.a.Release(testKey)
		h.waitHandled(t)
	}
	assert.Len(t, h.svc.requests(), 3)
	assert.Equal(t, []string{"30:1 30:0 57:1 57:0", "30:1 30:0 57:1 57:0", "30:1 30:0 57:1 57:0"}, tokens(h.sender.Calls()))
}

func TestEndToEndDeviceFailureIsolated(t *testing.T) {
	h := newHarness(t, make([]byte, 64), "b")

	h.a.Fail(errors.New("unplugged"))
	time.Sleep(20 * time.Millisecond)

	h.b.Press(testKey)
	h.b.Release(testKey)
	h.waitHandled(t)
	assert.Len(t, h.sender.Calls(), 1)
}
