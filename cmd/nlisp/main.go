package main

import (
	"fmt"
	"os"

	"github.com/miltonvm/milton/pkg/nlisp"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "nlisp SOURCE OUTPUT",
		Short:         "Compile nlisp source into Milton bytecode",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("can't open input file: %w", err)
			}

			img, stats, err := nlisp.CompileSource(string(src), os.Stderr)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], img.Pack(), 0o644); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Source lines: %d; instructions: %d; bytes: %d\n",
				stats.SourceLines, stats.Instructions, stats.Bytes)
			return nil
		},
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
