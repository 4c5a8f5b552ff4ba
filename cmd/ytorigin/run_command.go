package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Rorqualx/ytorigin/internal/daemon"
	"github.com/Rorqualx/ytorigin/pkg/version"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var startURLs []string
	var headless bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the browser and keep every watched tab on the original audio track",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ctx.ensureConfig(cmd)
			if cmd.Flags().Changed("url") {
				cfg.StartURLs = startURLs
			}
			if cmd.Flags().Changed("headless") {
				cfg.Headless = headless
			}

			printBanner(cmd)
			return daemon.New(cfg).Run(cmd.Context())
		},
	}

	cmd.Flags().StringSliceVar(&startURLs, "url", nil, "Start URL, repeatable (overrides START_URLS)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run the browser without a window")
	return cmd
}

func printBanner(cmd *cobra.Command) {
	fmt.Fprintln(cmd.ErrOrStderr(), `
       _              _       _
 _   _| |_ ___  _ __(_) __ _(_)_ __
| | | | __/ _ \| '__| |/ _' | | '_ \
| |_| | || (_) | |  | | (_| | | | | |
 \__, |\__\___/|_|  |_|\__, |_|_| |_|
 |___/                 |___/`)
	log.Info().
		Str("version", version.Full()).
		Str("go_version", version.GoVersion()).
		Msg("Starting ytorigin")
}
