package audio

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"keytalk/log"
)

// frameQueue collects blocks delivered by the driver callback. One queue
// belongs to one recording session, so a late callback from a stopped
// stream can never reach the next session.
type frameQueue struct {
	mu     sync.Mutex
	frames [][]byte
}

func (q *frameQueue) push(data []byte) {
	block := make([]byte, len(data))
	copy(block, data)
	q.mu.Lock()
	q.frames = append(q.frames, block)
	q.mu.Unlock()
}

func (q *frameQueue) drain() []byte {
	q.mu.Lock()
	frames := q.frames
	q.frames = nil
	q.mu.Unlock()

	n := 0
	for _, f := range frames {
		n += len(f)
	}
	out := make([]byte, 0, n)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// Recorder buffers microphone audio between StartRecording and
// StopRecording. It is not safe for concurrent use; only the driver
// callback runs on another goroutine.
type Recorder struct {
	ctx    Context
	device *DeviceInfo
	config CaptureConfig

	active  bool
	stream  CaptureDevice
	queue   *frameQueue
	session string
}

// NewRecorder records from device, or the system default when nil.
func NewRecorder(ctx Context, device *DeviceInfo) *Recorder {
	return &Recorder{ctx: ctx, device: device, config: DefaultCaptureConfig()}
}

func (r *Recorder) Active() bool { return r.active }

// SessionID identifies the current or most recent recording.
func (r *Recorder) SessionID() string { return r.session }

func (r *Recorder) StartRecording() error {
	if r.active {
		return nil
	}

	q := &frameQueue{}
	stream, err := r.ctx.NewCapture(r.device, r.config, func(data []byte, _ uint32) {
		q.push(data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}

	r.stream = stream
	r.queue = q
	r.session = uuid.NewString()
	r.active = true
	log.Debugf("recording started (session %s)", r.session)
	return nil
}

// StopRecording ends the session and returns everything captured, in
// arrival order. A failure while stopping yields an empty buffer.
func (r *Recorder) StopRecording() []byte {
	if !r.active {
		return nil
	}
	r.active = false

	stream, q := r.stream, r.queue
	r.stream, r.queue = nil, nil

	stopErr := stream.Stop()
	closeErr := stream.Close()
	if stopErr != nil || closeErr != nil {
		log.Errorf("error stopping recording (session %s): stop=%v close=%v", r.session, stopErr, closeErr)
		q.drain()
		return nil
	}

	data := q.drain()
	log.Debugf("recording stopped (session %s): %d bytes", r.session, len(data))
	return data
}

// Cleanup releases any open stream at shutdown.
func (r *Recorder) Cleanup() {
	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
		r.stream = nil
	}
	r.queue = nil
	r.active = false
}
