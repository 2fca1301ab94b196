// Package config holds process-wide display and logging options.
package config

import (
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
)

// Options controls rendering and logging.
type Options struct {
	// DisplayWidth is the maximum width of inline index representations.
	DisplayWidth int `env:"XPROJ_DISPLAY_WIDTH" envDefault:"80"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `env:"XPROJ_LOG_LEVEL" envDefault:"info"`
}

// Defaults returns the options used when the environment can't be parsed.
func Defaults() Options {
	return Options{
		DisplayWidth: 80,
		LogLevel:     "info",
	}
}

var (
	mu      sync.RWMutex
	current *Options
)

// Load parses options from environment variables.
func Load() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Defaults(), fmt.Errorf("parse env: %w", err)
	}
	if opts.DisplayWidth <= 0 {
		opts.DisplayWidth = Defaults().DisplayWidth
	}
	return opts, nil
}

// Get returns the current options, loading them from the environment on
// first use.
func Get() Options {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return *current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		opts, _ := Load()
		current = &opts
	}
	return *current
}

// Set replaces the current options and returns the previous ones.
func Set(opts Options) Options {
	prev := Get()
	if opts.DisplayWidth <= 0 {
		opts.DisplayWidth = prev.DisplayWidth
	}
	mu.Lock()
	current = &opts
	mu.Unlock()
	return prev
}
