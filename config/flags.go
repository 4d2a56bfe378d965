package config

import "flag"

// Flags holds command-line overrides. Only flags the user actually set
// are applied, so an unset flag never masks a file or environment value.
type Flags struct {
	fs *flag.FlagSet
	v  Config

	ConfigPath string
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/keytalk/config.toml)")
	fs.StringVar(&f.v.APIURL, "api-url", d.APIURL, "transcription service base URL")
	fs.StringVar(&f.v.Keyboard, "keyboard", "", "only use the keyboard with this exact name")
	fs.StringVar(&f.v.Key, "key", d.Key, "activation key (e.g. KEY_RIGHTMETA, KEY_F13, or a key code)")
	fs.StringVar(&f.v.Language, "language", d.Language, "transcription language code, or auto")
	fs.Float64Var(&f.v.PadSeconds, "pad-seconds", 0, "pad recordings to at least this many seconds server-side")
	fs.StringVar(&f.v.Layout, "layout", d.Layout, "keyboard layout for typing (us, de)")
	fs.IntVar(&f.v.InjectDelay, "inject-delay", 0, "delay between synthesized key events in ms (uinput)")
	fs.StringVar(&f.v.Injector, "injector", d.Injector, "text injector (ydotool, uinput)")
	fs.StringVar(&f.v.AudioBackend, "audio-backend", d.AudioBackend, "audio backend (pulse, miniaudio)")
	fs.StringVar(&f.v.Microphone, "microphone", "", "capture device name (substring match)")
	fs.DurationVar(&f.v.RequestTimeout, "request-timeout", d.RequestTimeout, "transcription request timeout")
	fs.BoolVar(&f.v.Beep, "beep", false, "play start/stop sounds")
	fs.BoolVar(&f.v.CopyClipboard, "copy", false, "also copy each transcript to the clipboard")
	fs.BoolVar(&f.v.Hotplug, "hotplug", false, "pick up keyboards connected after startup")
	fs.BoolVar(&f.v.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&f.v.LogPath, "logpath", "", "log directory (default $XDG_CONFIG_HOME/keytalk/logs)")
	return f
}

func (f *Flags) apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "api-url":
			cfg.APIURL = f.v.APIURL
		case "keyboard":
			cfg.Keyboard = f.v.Keyboard
		case "key":
			cfg.Key = f.v.Key
		case "language":
			cfg.Language = f.v.Language
		case "pad-seconds":
			cfg.PadSeconds = f.v.PadSeconds
		case "layout":
			cfg.Layout = f.v.Layout
		case "inject-delay":
			cfg.InjectDelay = f.v.InjectDelay
		case "injector":
			cfg.Injector = f.v.Injector
		case "audio-backend":
			cfg.AudioBackend = f.v.AudioBackend
		case "microphone":
			cfg.Microphone = f.v.Microphone
		case "request-timeout":
			cfg.RequestTimeout = f.v.RequestTimeout
		case "beep":
			cfg.Beep = f.v.Beep
		case "copy":
			cfg.CopyClipboard = f.v.CopyClipboard
		case "hotplug":
			cfg.Hotplug = f.v.Hotplug
		case "debug":
			cfg.Debug = f.v.Debug
		case "logpath":
			cfg.LogPath = f.v.LogPath
		}
	})
}

