package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/gogpu/framesync"
)

// Config controls a demo run.
type Config struct {
	Frames          int
	FramesInFlight  int
	Images          int
	Width           uint32
	Height          uint32
	ResizeEvery     int
	SuboptimalEvery int
	Recorders       int
	RecordWorkers   int
	FenceTimeout    time.Duration
	Trace           bool
	LogLevel        string
}

// DefaultConfig returns the configuration used when neither a file nor
// flags say otherwise.
func DefaultConfig() Config {
	return Config{
		Frames:         120,
		FramesInFlight: framesync.DefaultFramesInFlight,
		Images:         3,
		Width:          800,
		Height:         600,
		Recorders:      1,
		FenceTimeout:   framesync.DefaultFenceTimeout,
		LogLevel:       "warn",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Frames < 1 {
		errs = append(errs, fmt.Errorf("frames must be at least 1, got %d", c.Frames))
	}
	if c.FramesInFlight < 1 {
		errs = append(errs, fmt.Errorf("frames-in-flight must be at least 1, got %d", c.FramesInFlight))
	}
	if c.Images < 1 {
		errs = append(errs, fmt.Errorf("images must be at least 1, got %d", c.Images))
	}
	if c.Width == 0 || c.Height == 0 {
		errs = append(errs, fmt.Errorf("size must be non-zero, got %dx%d", c.Width, c.Height))
	}
	if c.ResizeEvery < 0 || c.SuboptimalEvery < 0 || c.Recorders < 0 || c.RecordWorkers < 0 {
		errs = append(errs, errors.New("counts and intervals must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log-level: %w", err)
	}
	return l, nil
}

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Frames          int    `toml:"frames"`
	FramesInFlight  int    `toml:"frames_in_flight"`
	Images          int    `toml:"images"`
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
	ResizeEvery     int    `toml:"resize_every"`
	SuboptimalEvery int    `toml:"suboptimal_every"`
	Recorders       int    `toml:"recorders"`
	RecordWorkers   int    `toml:"record_workers"`
	FenceTimeout    string `toml:"fence_timeout"`
	Trace           *bool  `toml:"trace"`
	LogLevel        string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("frames", fc.Frames, &cfg.Frames)
	s.setInt("frames-in-flight", fc.FramesInFlight, &cfg.FramesInFlight)
	s.setInt("images", fc.Images, &cfg.Images)
	s.setUint32("width", fc.Width, &cfg.Width)
	s.setUint32("height", fc.Height, &cfg.Height)
	s.setInt("resize-every", fc.ResizeEvery, &cfg.ResizeEvery)
	s.setInt("suboptimal-every", fc.SuboptimalEvery, &cfg.SuboptimalEvery)
	s.setInt("recorders", fc.Recorders, &cfg.Recorders)
	s.setInt("record-workers", fc.RecordWorkers, &cfg.RecordWorkers)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("trace", fc.Trace, &cfg.Trace)

	return s.setDuration("fence-timeout", fc.FenceTimeout, &cfg.FenceTimeout)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// configSetter applies file values only where the corresponding flag was
// not set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setUint32(flag string, value int, dst *uint32) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = uint32(value)
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}
