package inject

import (
	"errors"

	"github.com/atotto/clipboard"
)

var errClipboardUnsupported = errors.New("no clipboard utility available (install wl-clipboard, xclip or xsel)")

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}
