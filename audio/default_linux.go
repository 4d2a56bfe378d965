//go:build linux

package audio

func newDefaultContext() (Context, error) {
	return newPulseContext()
}
