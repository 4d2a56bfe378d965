//go:build !linux

package config

func defaultBackend() string { return "miniaudio" }
