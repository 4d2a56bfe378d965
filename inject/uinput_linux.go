//go:build linux

package inject

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// The kernel needs a moment to announce a new virtual keyboard before
// events written to it reach any client.
const uinputSettle = 2 * time.Second

// UinputSender writes key events through a virtual keyboard created on
// first use.
type UinputSender struct {
	delay time.Duration

	once sync.Once
	kb   keybd_event.KeyBonding
	err  error
}

func NewUinputSender(delayMs int) *UinputSender {
	return &UinputSender{delay: time.Duration(delayMs) * time.Millisecond}
}

func (s *UinputSender) Name() string { return "uinput" }

func (s *UinputSender) Init() error {
	s.once.Do(func() {
		s.kb, s.err = keybd_event.NewKeyBonding()
		if s.err != nil {
			s.err = fmt.Errorf("%w: uinput: %v", ErrInjectorMissing, s.err)
			return
		}
		time.Sleep(uinputSettle)
	})
	return s.err
}

func (s *UinputSender) Send(ctx context.Context, events []KeyEvent) error {
	if err := s.Init(); err != nil {
		return err
	}
	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.kb.Clear()
		s.kb.SetKeys(int(e.Code))
		var err error
		if e.Down {
			err = s.kb.Press()
		} else {
			err = s.kb.Release()
		}
		if err != nil {
			return fmt.Errorf("uinput event %s: %w", e, err)
		}
		if s.delay > 0 && i < len(events)-1 {
			time.Sleep(s.delay)
		}
	}
	return nil
}

func (s *UinputSender) Check() error { return s.Init() }
