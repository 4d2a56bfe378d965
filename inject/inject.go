// Package inject types text into the focused window by synthesizing key
// events for the configured keyboard layout.
package inject

import (
	"context"
	"fmt"
	"strconv"

	"keytalk/log"
)

const KeyLeftShift = 42

type KeyEvent struct {
	Code uint16
	Down bool
}

// String renders the event as a "<code>:<1|0>" token.
func (e KeyEvent) String() string {
	v := "0"
	if e.Down {
		v = "1"
	}
	return strconv.Itoa(int(e.Code)) + ":" + v
}

// Sender delivers one key event sequence to the system.
type Sender interface {
	Name() string
	Send(ctx context.Context, events []KeyEvent) error
}

// Expand converts text to key events. Characters the layout cannot type
// are skipped.
func Expand(l *Layout, text string) []KeyEvent {
	events := make([]KeyEvent, 0, len(text)*2)
	for _, r := range text {
		k, ok := l.Lookup(r)
		if !ok {
			log.Warnf("character %q not in %s layout, skipping", r, l.Name)
			continue
		}
		if k.Shift {
			events = append(events,
				KeyEvent{KeyLeftShift, true},
				KeyEvent{k.Code, true},
				KeyEvent{k.Code, false},
				KeyEvent{KeyLeftShift, false},
			)
		} else {
			events = append(events,
				KeyEvent{k.Code, true},
				KeyEvent{k.Code, false},
			)
		}
	}
	return events
}

type Injector struct {
	layout *Layout
	sender Sender
}

func New(layoutName string, sender Sender) (*Injector, error) {
	l, err := LookupLayout(layoutName)
	if err != nil {
		return nil, err
	}
	return &Injector{layout: l, sender: sender}, nil
}

// SendText types text followed by a space. Failures are logged only.
func (i *Injector) SendText(ctx context.Context, text string) {
	if text == "" {
		return
	}
	events := Expand(i.layout, text+" ")
	if len(events) == 0 {
		log.Warn("no typeable characters in text")
		return
	}
	log.Debugf("typing %d characters as %d key events via %s", len([]rune(text))+1, len(events), i.sender.Name())
	if err := i.sender.Send(ctx, events); err != nil {
		log.Errorf("text injection failed: %v", err)
	}
}

// Tokens renders events as command-line arguments.
func Tokens(events []KeyEvent) []string {
	out := make([]string, len(events))
	for j, e := range events {
		out[j] = e.String()
	}
	return out
}

// NewSender builds the named sender.
func NewSender(name string, argv []string, socket string, delayMs int) (Sender, error) {
	switch name {
	case "", "ydotool":
		return &CommandSender{Argv: argv, Socket: socket}, nil
	case "uinput":
		return NewUinputSender(delayMs), nil
	default:
		return nil, fmt.Errorf("unknown injector %q", name)
	}
}
