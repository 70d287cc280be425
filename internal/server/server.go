// Package server builds a configured platform for the dobby command.
package server

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/txn2/dobby/pkg/configstore"
	"github.com/txn2/dobby/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

// LoadConfig reads the platform configuration from path. An empty path
// yields the defaults.
func LoadConfig(path string) (*platform.Config, error) {
	if path == "" {
		return platform.ConfigFromLookup(configstore.Empty()), nil
	}
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// New creates a platform from cfg. It does not start it.
func New(cfg *platform.Config, opts ...platform.Option) (*platform.Platform, error) {
	p, err := platform.New(append([]platform.Option{platform.WithConfig(cfg)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating platform: %w", err)
	}
	return p, nil
}

// NewLogger returns a JSON logger writing to w at the named level
// (debug, info, warn or error).
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
