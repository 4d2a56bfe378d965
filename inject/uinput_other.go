//go:build !linux

package inject

import (
	"context"
	"fmt"
)

type UinputSender struct{}

func NewUinputSender(int) *UinputSender { return &UinputSender{} }

func (s *UinputSender) Name() string { return "uinput" }

func (s *UinputSender) Init() error {
	return fmt.Errorf("%w: uinput is only available on linux", ErrInjectorMissing)
}

func (s *UinputSender) Send(context.Context, []KeyEvent) error {
	return s.Init()
}

func (s *UinputSender) Check() error { return s.Init() }
