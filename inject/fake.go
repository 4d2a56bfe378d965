package inject

import (
	"context"
	"sync"
)

// RecordingSender keeps every sequence it is asked to send.
type RecordingSender struct {
	mu    sync.Mutex
	calls [][]KeyEvent
	Err   error
}

func (s *RecordingSender) Name() string { return "recording" }

func (s *RecordingSender) Send(_ context.Context, events []KeyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]KeyEvent(nil), events...))
	return s.Err
}

func (s *RecordingSender) Calls() [][]KeyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]KeyEvent(nil), s.calls...)
}
