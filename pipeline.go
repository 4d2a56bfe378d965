package main

import (
	"context"
	"time"

	"keytalk/hotkey"
	"keytalk/log"
)

type state int

const (
	stateIdle state = iota
	stateRecording
)

func (s state) String() string {
	if s == stateRecording {
		return "recording"
	}
	return "idle"
}

type recorder interface {
	StartRecording() error
	StopRecording() []byte
	SessionID() string
	Cleanup()
}

type speechToText interface {
	TranscribeSession(ctx context.Context, audio []byte, session string) string
}

type textSink interface {
	SendText(ctx context.Context, text string)
}

type cues interface {
	Start()
	Stop()
	Error()
}

type silentCues struct{}

func (silentCues) Start() {}
func (silentCues) Stop()  {}
func (silentCues) Error() {}

// pipeline turns activation key edges into typed text: press starts a
// recording, release stops it, transcribes it and types the result. All
// state lives on the goroutine running Run.
type pipeline struct {
	rec   recorder
	trans speechToText
	sink  textSink
	cues  cues

	// copyText, when set, receives every non-empty transcript
	copyText func(string) error
	// afterRelease runs once each release has been fully handled
	afterRelease func()

	state      state
	pressedAt  time.Time
	utterances int
}

func newPipeline(rec recorder, trans speechToText, sink textSink) *pipeline {
	return &pipeline{rec: rec, trans: trans, sink: sink, cues: silentCues{}}
}

// Run consumes edges until ctx is cancelled or the channel closes.
func (p *pipeline) Run(ctx context.Context, edges <-chan hotkey.Edge) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-edges:
			if !ok {
				return
			}
			p.handle(ctx, e)
		}
	}
}

func (p *pipeline) handle(ctx context.Context, e hotkey.Edge) {
	switch {
	case e.Down && p.state == stateIdle:
		p.start(e.Device)
	case !e.Down && p.state == stateRecording:
		p.finish(ctx, e.Device)
	default:
		log.Debugf("ignoring %s edge from %s while %s", edgeName(e), e.Device.Path, p.state)
	}
}

func edgeName(e hotkey.Edge) string {
	if e.Down {
		return "down"
	}
	return "up"
}

func (p *pipeline) start(dev hotkey.Device) {
	if err := p.rec.StartRecording(); err != nil {
		log.Errorf("could not start recording: %v", err)
		p.cues.Error()
		return
	}
	p.state = stateRecording
	p.pressedAt = time.Now()
	p.cues.Start()
	log.Infof("recording started on %s (session %s)", dev.Name, p.rec.SessionID())
}

func (p *pipeline) finish(ctx context.Context, dev hotkey.Device) {
	audio := p.rec.StopRecording()
	p.state = stateIdle
	held := time.Since(p.pressedAt)
	session := p.rec.SessionID()
	p.cues.Stop()
	log.Infof("recording stopped on %s: %d bytes in %s", dev.Name, len(audio), held.Round(time.Millisecond))

	defer func() {
		if p.afterRelease != nil {
			p.afterRelease()
		}
	}()

	if len(audio) == 0 {
		log.Info("no audio captured")
		log.Utterance(session, 0, held, 0)
		return
	}

	text := p.trans.TranscribeSession(ctx, audio, session)
	p.utterances++
	log.Utterance(session, len(audio), held, len([]rune(text)))
	if text == "" {
		log.Info("no transcription result")
		return
	}

	log.TranscriptionText(text)
	p.sink.SendText(ctx, text)
	if p.copyText != nil {
		if err := p.copyText(text); err != nil {
			log.Warnf("clipboard copy failed: %v", err)
		}
	}
}

// Close releases the recorder; safe to call while recording.
func (p *pipeline) Close() {
	p.rec.Cleanup()
	p.state = stateIdle
}
