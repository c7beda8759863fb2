package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xyproto/hexlink/internal/diag"
	"github.com/xyproto/hexlink/internal/link"
	"github.com/xyproto/hexlink/internal/optimizer"
)

func newOptimizeCmd(g *globals) *cobra.Command {
	var level, output string
	cmd := &cobra.Command{
		Use:   "optimize [-O level] in.bin -o out.bin",
		Short: "Shrink a raw x86-64 code file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := optimizer.ParseLevel(level)
			if err != nil {
				return err
			}
			code, err := os.ReadFile(args[0])
			if err != nil {
				return &diag.IOError{Op: "read", Path: args[0], Err: err}
			}
			res, err := optimizer.Optimize(code, optimizer.Options{Level: lvl, Logger: g.logger()})
			if err != nil {
				return err
			}
			if output != "" {
				if err := link.WriteFile(output, res.Code, false); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Stats)
			return nil
		},
	}
	cmd.Flags().StringVarP(&level, "opt", "O", "ultra", "optimization level: none, basic, aggressive, ultra")
	cmd.Flags().StringVarP(&output, "output", "o", "", "where to write the optimized code")
	return cmd
}
