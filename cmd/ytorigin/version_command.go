package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rorqualx/ytorigin/pkg/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ytorigin %s (%s)\n", version.Full(), version.GoVersion())
		},
	}
}
