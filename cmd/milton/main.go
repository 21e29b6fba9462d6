package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/miltonvm/milton/pkg/bytecode"
	"github.com/miltonvm/milton/pkg/machine"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "milton BYTECODE [INPUT_TOKENS...]",
		Short:         "Run a compiled bytecode image on the Milton machine",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			img, err := bytecode.Load(raw)
			if err != nil {
				return err
			}

			cu := machine.New(img.DataMem(), img.Instructions)
			cu.Input = []byte(strings.Join(args[1:], " "))

			if err := cu.Run(os.Stderr); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Ticks: %d; instructions: %d\n", cu.Ticks, cu.Instructions)
			fmt.Println(string(cu.Output))
			return nil
		},
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
