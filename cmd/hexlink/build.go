package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xyproto/hexlink"
	"github.com/xyproto/hexlink/internal/ast"
	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/engine"
	"github.com/xyproto/hexlink/internal/optimizer"
)

// buildFlags are the settings shared by build and dump. Empty strings and
// zero values leave the HEXLINK_* environment defaults in place.
type buildFlags struct {
	target    string
	level     string
	strict    bool
	maxFrame  int
	origin    uint64
	fixedSize int
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "output container: "+strings.Join(engine.TargetNames(), ", "))
	cmd.Flags().StringVarP(&f.level, "opt", "O", "", "optimization level: none, basic, aggressive, ultra")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "reading an unbound variable is an error")
	cmd.Flags().IntVar(&f.maxFrame, "max-frame", 0, "largest stack frame in bytes")
	cmd.Flags().Uint64Var(&f.origin, "origin", 0, "load address of flat and boot targets")
	cmd.Flags().IntVar(&f.fixedSize, "fixed-size", 0, "pad flat output to this many bytes")
}

func (f *buildFlags) options(cmd *cobra.Command, g *globals) ([]hexlink.Option, error) {
	opts := []hexlink.Option{hexlink.WithLogger(g.logger())}
	if f.target != "" {
		t, err := engine.ParseTarget(f.target)
		if err != nil {
			return nil, err
		}
		opts = append(opts, hexlink.WithTarget(t))
	}
	if f.level != "" {
		level, err := optimizer.ParseLevel(f.level)
		if err != nil {
			return nil, err
		}
		opts = append(opts, hexlink.WithOptimization(level))
	}
	if cmd.Flags().Changed("strict") {
		opts = append(opts, hexlink.WithStrict(f.strict))
	}
	if f.maxFrame > 0 {
		opts = append(opts, hexlink.WithMaxFrameSize(f.maxFrame))
	}
	if f.origin > 0 {
		opts = append(opts, hexlink.WithOrigin(f.origin))
	}
	if f.fixedSize > 0 {
		opts = append(opts, hexlink.WithFixedSize(f.fixedSize))
	}
	return opts, nil
}

func readProgram(path string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &diag.IOError{Op: "read", Path: path, Err: err}
	}
	prog, err := ast.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// outputPath is the input path with its extension replaced by the target's
func outputPath(input string, target engine.Target) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + target.DefaultExtension()
}

func newBuildCmd(g *globals) *cobra.Command {
	var (
		flags  buildFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "build [flags] tree.yaml...",
		Short: "Compile syntax trees into executables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && len(args) > 1 {
				return fmt.Errorf("-o needs a single input, got %d", len(args))
			}
			opts, err := flags.options(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var bar *progressbar.ProgressBar
			if len(args) > 1 && g.color() {
				bar = progressbar.NewOptions(len(args),
					progressbar.OptionSetWriter(g.stderr),
					progressbar.OptionSetDescription("building"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			var errs *multierror.Error
			for _, input := range args {
				if err := buildOne(ctx, cmd, input, output, opts); err != nil {
					errs = multierror.Append(errs, err)
				}
				if bar != nil {
					bar.Add(1)
				}
			}
			if bar != nil {
				bar.Finish()
			}
			return errs.ErrorOrNil()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single input only)")
	return cmd
}

func buildOne(ctx context.Context, cmd *cobra.Command, input, output string, opts []hexlink.Option) error {
	prog, err := readProgram(input)
	if err != nil {
		return err
	}
	res, err := hexlink.Build(ctx, prog, opts...)
	if err != nil {
		return err
	}
	if output == "" {
		output = outputPath(input, res.Image.Target)
		if output == input {
			output += ".out"
		}
	}
	if err := res.WriteFile(output); err != nil {
		return err
	}
	msg := fmt.Sprintf("%s: %d bytes (%s)", output, len(res.Bytes), res.Image.Target)
	if res.Stats != nil {
		msg += fmt.Sprintf(", %d bytes saved", res.Stats.BytesSaved)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
