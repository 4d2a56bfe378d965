package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrSelectionAborted = errors.New("microphone selection aborted")

type pickerKey int

const (
	keyNone pickerKey = iota
	keyUp
	keyDown
	keyEnter
	keyAbort
)

func decodeKey(b []byte) pickerKey {
	if len(b) == 1 {
		switch b[0] {
		case '\r', '\n':
			return keyEnter
		case 3, 'q': // Ctrl+C
			return keyAbort
		case 'j':
			return keyDown
		case 'k':
			return keyUp
		}
	}
	if len(b) == 3 && b[0] == 0x1b && b[1] == '[' {
		switch b[2] {
		case 'A':
			return keyUp
		case 'B':
			return keyDown
		}
	}
	return keyNone
}

func moveCursor(cursor, n int, k pickerKey) int {
	switch k {
	case keyUp:
		if cursor > 0 {
			cursor--
		}
	case keyDown:
		if cursor < n-1 {
			cursor++
		}
	}
	return cursor
}

func renderDevices(w io.Writer, devices []DeviceInfo, cursor int) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		btTag := ""
		if IsBluetooth(d.Name) {
			btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, btTag)
		}
	}
}

// SelectDevice presents an interactive microphone picker on the terminal.
// With a single device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderDevices(os.Stdout, devices, cursor)

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		k := decodeKey(buf[:n])
		switch k {
		case keyEnter:
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case keyAbort:
			fmt.Print("\r\n")
			return nil, ErrSelectionAborted
		}
		cursor = moveCursor(cursor, len(devices), k)

		fmt.Printf("\x1b[%dA", len(devices)+2)
		renderDevices(os.Stdout, devices, cursor)
	}
}
