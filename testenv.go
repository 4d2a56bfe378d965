package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"keytalk/audio"
	"keytalk/hotkey"
	"keytalk/log"
)

const testDevicePath = "/dev/input/event-test"

// runTestMode drives the real pipeline from line commands on r: KEYDOWN,
// KEYUP, WAIT (block until the last release is handled), SLEEP <ms> and
// QUIT. Audio comes from wavPath instead of a microphone.
func runTestMode(a *app, wavPath string, r io.Reader) int {
	actx, err := audio.NewFakeContextFromWAV(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}

	src := hotkey.NewFakeSource()
	kb := src.Add(testDevicePath, "keytalk test keyboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	released := make(chan struct{}, 1)
	p := a.pipeline(audio.NewRecorder(actx, nil))
	p.afterRelease = func() {
		select {
		case released <- struct{}{}:
		default:
		}
	}
	defer p.Close()

	w := hotkey.NewWatcher(src, a.key)
	w.Start(ctx, []hotkey.Device{{Path: testDevicePath, Name: "keytalk test keyboard"}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx, w.Edges())
	}()

	log.SessionStart(a.cfg.APIURL, a.cfg.Key, a.cfg.Layout, a.sender.Name())
	defer func() {
		cancel()
		<-done
		log.SessionEnd(p.utterances)
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "KEYDOWN":
			kb.Press(a.key)
		case cmd == "KEYUP":
			kb.Release(a.key)
		case cmd == "WAIT":
			<-released
		case cmd == "QUIT":
			return 0
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case cmd == "":
		default:
			log.Warnf("test mode: unknown command %q", cmd)
		}
	}
	return 0
}
