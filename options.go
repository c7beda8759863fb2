package hexlink

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/xyproto/env/v2"

	"github.com/xyproto/hexlink/internal/engine"
	"github.com/xyproto/hexlink/internal/optimizer"
)

// Option configures a build
type Option func(*config)

type config struct {
	target       engine.Target
	level        optimizer.Level
	strict       bool
	maxFrameSize int
	origin       uint64
	fixedSize    int
	logger       zerolog.Logger
}

// hostTarget is the native container of the machine running the build
func hostTarget() string {
	if runtime.GOOS == "windows" {
		return "pe"
	}
	return "elf"
}

// defaultConfig reads HEXLINK_TARGET, HEXLINK_OPT, HEXLINK_STRICT,
// HEXLINK_VERBOSE and HEXLINK_MAX_FRAME
func defaultConfig() (*config, error) {
	target, err := engine.ParseTarget(env.Str("HEXLINK_TARGET", hostTarget()))
	if err != nil {
		return nil, fmt.Errorf("HEXLINK_TARGET: %w", err)
	}
	level, err := optimizer.ParseLevel(env.Str("HEXLINK_OPT", "none"))
	if err != nil {
		return nil, fmt.Errorf("HEXLINK_OPT: %w", err)
	}
	cfg := &config{
		target:       target,
		level:        level,
		strict:       env.Bool("HEXLINK_STRICT"),
		maxFrameSize: env.Int("HEXLINK_MAX_FRAME", 0),
		logger:       zerolog.Nop(),
	}
	if env.Bool("HEXLINK_VERBOSE") {
		cfg.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
	return cfg, nil
}

// WithTarget selects the output container
func WithTarget(t engine.Target) Option {
	return func(cfg *config) {
		cfg.target = t
	}
}

// WithOptimization enables the size optimizer at the given level
func WithOptimization(level optimizer.Level) Option {
	return func(cfg *config) {
		cfg.level = level
	}
}

// WithStrict makes reading an unbound variable an error instead of zero.
func WithStrict(strict bool) Option {
	return func(cfg *config) {
		cfg.strict = strict
	}
}

// WithLogger sets the logger for all build phases. Debug level gets a summary
// per phase, Trace level one event per emitted instruction.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithMaxFrameSize caps the stack frame of any function
func WithMaxFrameSize(n int) Option {
	return func(cfg *config) {
		cfg.maxFrameSize = n
	}
}

// WithOrigin sets the load address of flat binaries and boot sectors
func WithOrigin(addr uint64) Option {
	return func(cfg *config) {
		cfg.origin = addr
	}
}

// WithFixedSize pads a flat binary to n bytes, failing if it does not fit
func WithFixedSize(n int) Option {
	return func(cfg *config) {
		cfg.fixedSize = n
	}
}
