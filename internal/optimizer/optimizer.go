// Package optimizer shrinks finished x86-64 code with byte-level peephole
// rewrites. It decodes the stream, rewrites matching instructions, relaxes
// branches and lays the code out again with every internal displacement
// recomputed. A Map carries offsets from the old layout to the new one.
package optimizer

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Level selects which rewrites run
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelAggressive
	LevelUltra
)

var levelNames = []string{"none", "basic", "aggressive", "ultra"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts a level name or its number
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if s == name || s == fmt.Sprint(i) {
			return Level(i), nil
		}
	}
	switch s {
	case "", "off":
		return LevelNone, nil
	case "max":
		return LevelUltra, nil
	}
	return LevelNone, fmt.Errorf("unknown optimization level %q (want one of %s)", s, strings.Join(levelNames, ", "))
}

// Pattern names one rewrite
type Pattern string

const (
	PatternNop         Pattern = "nop"
	PatternZeroMov     Pattern = "zero-mov"
	PatternLeave       Pattern = "leave"
	PatternShortBranch Pattern = "short-branch"
	PatternImm32       Pattern = "imm32"
	PatternSubRSPImm8  Pattern = "sub-rsp-imm8"
	PatternPushPop     Pattern = "push-pop"
)

// patterns returns the rewrites enabled at l, in the order they run
func (l Level) patterns() []Pattern {
	var ps []Pattern
	if l >= LevelBasic {
		ps = append(ps, PatternNop, PatternZeroMov, PatternLeave)
	}
	if l >= LevelAggressive {
		ps = append(ps, PatternImm32, PatternSubRSPImm8, PatternShortBranch)
	}
	if l >= LevelUltra {
		ps = append(ps, PatternPushPop)
	}
	return ps
}

// Options configures one optimization run
type Options struct {
	Level Level
	// Pinned holds instruction start offsets that must keep their encoding,
	// such as sites of relocations the container patches later
	Pinned []int
	Logger zerolog.Logger
}

// Stats summarizes what a run did
type Stats struct {
	OriginalSize        int
	OptimizedSize       int
	BytesSaved          int
	InstructionsRemoved int
	Patterns            map[Pattern]int
	Skipped             string // why the input was returned unchanged, if it was
}

func (s Stats) String() string {
	if s.Skipped != "" {
		return fmt.Sprintf("%d bytes, not optimized: %s", s.OriginalSize, s.Skipped)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d -> %d bytes (%d saved", s.OriginalSize, s.OptimizedSize, s.BytesSaved)
	if s.OriginalSize > 0 {
		fmt.Fprintf(&sb, ", %.1f%%", 100*float64(s.BytesSaved)/float64(s.OriginalSize))
	}
	fmt.Fprintf(&sb, "), %d instructions removed", s.InstructionsRemoved)
	for _, p := range allPatterns {
		if n := s.Patterns[p]; n > 0 {
			fmt.Fprintf(&sb, "\n  %-13s %d", p, n)
		}
	}
	return sb.String()
}

var allPatterns = LevelUltra.patterns()

// Result is the optimized code plus what is needed to carry offsets over
type Result struct {
	Code  []byte
	Stats Stats
	Map   *Map
}

// Optimize rewrites code at opts.Level. The output is never longer than the
// input; code that cannot be decoded is returned unchanged with
// Stats.Skipped set.
func Optimize(code []byte, opts Options) (Result, error) {
	log := opts.Logger
	stats := Stats{OriginalSize: len(code), OptimizedSize: len(code), Patterns: make(map[Pattern]int)}
	unchanged := func(reason string) Result {
		stats.Skipped = reason
		return Result{Code: append([]byte(nil), code...), Stats: stats, Map: identityMap(len(code))}
	}

	if opts.Level <= LevelNone || len(code) == 0 {
		return Result{Code: append([]byte(nil), code...), Stats: stats, Map: identityMap(len(code))}, nil
	}

	insns, err := decode(code)
	if err != nil {
		log.Debug().Err(err).Msg("optimizer: input not decodable, left unchanged")
		return unchanged(err.Error()), nil
	}

	p := newProgram(code, insns, opts.Pinned)
	enabled := make(map[Pattern]bool)
	for _, pat := range opts.Level.patterns() {
		enabled[pat] = true
	}

	// Pass 1: local rewrites that do not depend on the layout
	for _, pat := range opts.Level.patterns() {
		if pat == PatternShortBranch {
			continue
		}
		// removing a pair can make its neighbours adjacent, so repeat until quiet
		total := 0
		for n := p.rewrite(pat); n > 0; n = p.rewrite(pat) {
			total += n
		}
		if total > 0 {
			stats.Patterns[pat] += total
			log.Debug().Str("pattern", string(pat)).Int("count", total).Msg("optimizer: rewrite")
		}
	}

	// Pass 2: branch relaxation to a fixed point
	if enabled[PatternShortBranch] {
		n, rounds := p.relax()
		stats.Patterns[PatternShortBranch] += n
		log.Debug().Int("count", n).Int("rounds", rounds).Msg("optimizer: branch relaxation")
	}

	// Pass 3: final layout with all displacements recomputed
	out, m, err := p.emit()
	if err != nil {
		log.Debug().Err(err).Msg("optimizer: layout failed, left unchanged")
		return unchanged(err.Error()), nil
	}
	if len(out) > len(code) {
		return Result{}, fmt.Errorf("optimizer: output grew from %d to %d bytes", len(code), len(out))
	}

	stats.OptimizedSize = len(out)
	stats.BytesSaved = len(code) - len(out)
	stats.InstructionsRemoved = p.removed()
	log.Debug().Int("before", len(code)).Int("after", len(out)).Int("saved", stats.BytesSaved).Str("level", opts.Level.String()).Msg("optimizer: done")
	return Result{Code: out, Stats: stats, Map: m}, nil
}
