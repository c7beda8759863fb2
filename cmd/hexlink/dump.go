package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xyproto/hexlink"
	"github.com/xyproto/hexlink/internal/codegen"
)

func newDumpCmd(g *globals) *cobra.Command {
	var flags buildFlags
	cmd := &cobra.Command{
		Use:   "dump [flags] tree.yaml",
		Short: "Show the functions, relocations and code of a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd, g)
			if err != nil {
				return err
			}
			prog, err := readProgram(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res, err := hexlink.Build(ctx, prog, opts...)
			if err != nil {
				return err
			}
			dumpImage(cmd.OutOrStdout(), res)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func dumpImage(w io.Writer, res *hexlink.Result) {
	img := res.Image
	fmt.Fprintf(w, "target %s, entry 0x%x (%s), %d bytes code, %d bytes data, %d bytes output\n",
		img.Target, img.Entry, img.EntryName, len(img.Code), len(img.Data), len(res.Bytes))
	if res.Stats != nil {
		fmt.Fprintln(w, res.Stats)
	}

	fmt.Fprintln(w, "\nfunctions:")
	for _, f := range img.Functions {
		fmt.Fprintf(w, "  %-16s offset 0x%04x  size %5d  frame %4d  params %d\n", f.Name, f.Offset, f.Size, f.FrameSize, len(f.Params))
	}

	if len(img.Relocations) > 0 {
		fmt.Fprintln(w, "\nrelocations:")
		for _, r := range img.Relocations {
			target := r.Symbol
			if r.Kind == codegen.RelData {
				target = fmt.Sprintf("%q", stringAt(img, r.Addend))
			}
			fmt.Fprintf(w, "  %-6s site 0x%04x  field 0x%04x  %s\n", r.Kind, r.Site, r.Offset, target)
		}
	}

	fmt.Fprintln(w, "\ncode:")
	fmt.Fprint(w, hex.Dump(img.Code))
}

// stringAt returns the NUL-terminated string at offset off of the data
func stringAt(img *codegen.Image, off int64) string {
	if off < 0 || off >= int64(len(img.Data)) {
		return ""
	}
	s := img.Data[off:]
	for i, b := range s {
		if b == 0 {
			return string(s[:i])
		}
	}
	return string(s)
}
