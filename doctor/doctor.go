// Package doctor runs non-interactive checks of everything keytalk needs
// at runtime and prints a PASS/FAIL report.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"keytalk/audio"
	"keytalk/hotkey"
	"keytalk/transcriber"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Check is one diagnostic. Run returns a short status on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

type Service interface {
	Health(ctx context.Context) (transcriber.Status, error)
	Info(ctx context.Context) (transcriber.Status, error)
}

type Injector interface {
	Name() string
	Check() error
}

type Deps struct {
	Keyboards hotkey.Source
	Filter    string
	Service   Service
	Injector  Injector // nil skips the check
	Audio     func() (audio.Context, error)
}

func Checks(d Deps) []Check {
	checks := []Check{
		{"Keyboard access", func(context.Context) (string, error) {
			return hotkey.Diagnose(d.Keyboards, d.Filter)
		}},
		{"Transcription service", func(ctx context.Context) (string, error) {
			return checkService(ctx, d.Service)
		}},
	}
	if d.Injector != nil {
		checks = append(checks, Check{"Text injector", func(context.Context) (string, error) {
			if err := d.Injector.Check(); err != nil {
				return "", err
			}
			return d.Injector.Name() + " available", nil
		}})
	}
	checks = append(checks, Check{"Microphone", func(context.Context) (string, error) {
		return checkMicrophone(d.Audio)
	}})
	return checks
}

func checkService(ctx context.Context, svc Service) (string, error) {
	st, err := svc.Health(ctx)
	if err != nil {
		return "", err
	}
	if !st.Healthy {
		return "", fmt.Errorf("service reports status %q, model loaded: %v", st.Status, st.ModelLoaded)
	}
	info, err := svc.Info(ctx)
	if err != nil {
		return "healthy", nil
	}
	return fmt.Sprintf("healthy, model %s", info.Model), nil
}

func checkMicrophone(open func() (audio.Context, error)) (string, error) {
	ctx, err := open()
	if err != nil {
		return "", fmt.Errorf("cannot connect to audio: %w", err)
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", errors.New("no capture devices found")
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
		if audio.IsBluetooth(d.Name) {
			names[i] += " (bluetooth)"
		}
	}
	return fmt.Sprintf("%d device(s): %s", len(devices), strings.Join(names, ", ")), nil
}

// Run executes every check and returns the exit code: 0 if all pass, 1
// otherwise.
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, titleStyle.Render("keytalk doctor"))
	fmt.Fprintln(w)

	failed := 0
	for i, c := range checks {
		msg, err := c.Run(ctx)
		label := fmt.Sprintf("[%d/%d] %s", i+1, len(checks), c.Name)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s\n", failStyle.Render("FAIL"), label)
			fmt.Fprintf(w, "     %s\n", detailStyle.Render(err.Error()))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", passStyle.Render("PASS"), label)
		if msg != "" {
			fmt.Fprintf(w, "     %s\n", detailStyle.Render(msg))
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "%d of %d checks failed.\n", failed, len(checks))
		return 1
	}
	fmt.Fprintln(w, "All checks passed!")
	return 0
}
