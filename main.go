package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"keytalk/audio"
	"keytalk/beep"
	"keytalk/config"
	"keytalk/doctor"
	"keytalk/hotkey"
	"keytalk/inject"
	"keytalk/log"
	"keytalk/shutdown"
	"keytalk/transcriber"
)

var version = "dev"

type options struct {
	setup   bool
	doctor  bool
	version bool
	testWAV string
}

// app is everything resolved from configuration before any device is
// touched.
type app struct {
	cfg      *config.Config
	key      uint16
	sender   inject.Sender
	injector *inject.Injector
	client   *transcriber.Client
}

func newApp(cfg *config.Config) (*app, error) {
	key, err := hotkey.ParseKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	sender, err := inject.NewSender(cfg.Injector, cfg.InjectCommand, cfg.YdotoolSocket, cfg.InjectDelay)
	if err != nil {
		return nil, err
	}
	injector, err := inject.New(cfg.Layout, sender)
	if err != nil {
		return nil, err
	}
	client := transcriber.New(transcriber.Options{
		BaseURL:    cfg.APIURL,
		Language:   cfg.Language,
		PadSeconds: cfg.PadSeconds,
		TextPath:   cfg.TextPath,
		Timeout:    cfg.RequestTimeout,
	})
	return &app{cfg: cfg, key: key, sender: sender, injector: injector, client: client}, nil
}

func (a *app) pipeline(rec recorder) *pipeline {
	p := newPipeline(rec, a.client, a.injector)
	if a.cfg.CopyClipboard {
		p.copyText = inject.CopyToClipboard
	}
	return p
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("keytalk", flag.ContinueOnError)
	flags := config.RegisterFlags(fs)
	var opts options
	fs.BoolVar(&opts.setup, "setup", false, "select microphone interactively")
	fs.BoolVar(&opts.doctor, "doctor", false, "run system diagnostics and exit")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.StringVar(&opts.testWAV, "test", "", "headless test mode: replay this WAV, driven by stdin commands")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Printf("keytalk %s\n", version)
		return 0
	}

	cfg, err := config.Load(flags.ConfigPath, ".env", flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := initLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Errorf("configuration error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.doctor {
		return runDoctor(a)
	}
	if opts.testWAV != "" {
		return runTestMode(a, opts.testWAV, os.Stdin)
	}
	return serve(a, opts)
}

func initLogging(cfg *config.Config) error {
	dir, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("resolving log directory: %w", err)
	}
	log.SetDir(dir)
	if err := log.Init(log.Options{Debug: cfg.Debug, Console: os.Stderr}); err != nil {
		return err
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
		crashFile.Close()
	}
	return nil
}

func runDoctor(a *app) int {
	var inj doctor.Injector
	if c, ok := a.sender.(doctor.Injector); ok {
		inj = c
	}
	checks := doctor.Checks(doctor.Deps{
		Keyboards: hotkey.NewEvdevSource(),
		Filter:    a.cfg.Keyboard,
		Service:   a.client,
		Injector:  inj,
		Audio:     func() (audio.Context, error) { return audio.NewContext(a.cfg.AudioBackend) },
	})
	return doctor.Run(context.Background(), os.Stdout, checks)
}

func warnIfUnhealthy(ctx context.Context, c *transcriber.Client) {
	st, err := c.Health(ctx)
	switch {
	case err != nil:
		log.Warnf("transcription service at %s not reachable: %v", c.BaseURL(), err)
	case !st.Healthy:
		log.Warnf("transcription service at %s reports status %q (model loaded: %v)", c.BaseURL(), st.Status, st.ModelLoaded)
	default:
		if info, err := c.Info(ctx); err == nil {
			log.Infof("transcription service ready: model %s", info.Model)
		}
	}
}

func selectMicrophone(actx audio.Context, cfg *config.Config, setup bool) (*audio.DeviceInfo, error) {
	if setup {
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Using microphone: %s\n", dev.Name)
		return dev, nil
	}
	return audio.FindDevice(actx, cfg.Microphone)
}

func serve(a *app, opts options) int {
	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	cfg := a.cfg
	log.SessionStart(cfg.APIURL, cfg.Key, cfg.Layout, a.sender.Name())
	warnIfUnhealthy(ctx, a.client)

	src := hotkey.NewEvdevSource()
	devices, err := hotkey.FindDevices(src, cfg.Keyboard)
	if err != nil {
		log.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	actx, err := audio.NewContext(cfg.AudioBackend)
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	mic, err := selectMicrophone(actx, cfg, opts.setup)
	if err != nil {
		log.Errorf("microphone selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	player := beep.New(cfg.Beep)
	defer player.Close()

	p := a.pipeline(audio.NewRecorder(actx, mic))
	p.cues = player
	defer p.Close()

	w := hotkey.NewWatcher(src, a.key)
	if cfg.Hotplug {
		w.EnableHotplug(src.Dir, cfg.Keyboard)
	}
	w.Start(ctx, devices)

	log.Infof("hold %s to dictate (%d keyboard(s), layout %s)", hotkey.KeyName(a.key), len(devices), cfg.Layout)
	p.Run(ctx, w.Edges())
	log.SessionEnd(p.utterances)

	if ctx.Err() == nil {
		log.Error("all keyboard devices stopped")
		return 1
	}
	log.Info("shutting down")
	return 0
}
