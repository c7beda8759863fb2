// Completion: 100% - CLI complete: build, dump and optimize
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/xyproto/hexlink/internal/diag"
)

var version = "dev"

// globals holds the persistent flags every subcommand shares
type globals struct {
	verbose bool
	trace   bool
	noColor bool
	stderr  io.Writer
}

func (g *globals) logger() zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case g.trace:
		level = zerolog.TraceLevel
	case g.verbose:
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: g.stderr, NoColor: !g.color(), TimeFormat: "15:04:05"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// color is true when stderr is a terminal and color was not turned off
func (g *globals) color() bool {
	if g.noColor {
		return false
	}
	f, ok := g.stderr.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "hexlink",
		Short:         "Compile syntax trees to native x86-64 executables",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", env.Bool("HEXLINK_VERBOSE"), "log a summary of every phase")
	root.PersistentFlags().BoolVar(&g.trace, "trace", false, "log every emitted instruction")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", env.Has("NO_COLOR"), "disable colored output")

	root.AddCommand(newBuildCmd(g), newDumpCmd(g), newOptimizeCmd(g))
	return root
}

// report prints err, one diagnostic per failure when several were collected
func report(w io.Writer, err error, useColor bool) {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.WrappedErrors() {
			fmt.Fprint(w, diag.Format(e, useColor))
		}
		return
	}
	fmt.Fprint(w, diag.Format(err, useColor))
}

func run(args []string, stdout, stderr io.Writer) int {
	g := &globals{stderr: stderr}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		report(stderr, err, g.color())
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
