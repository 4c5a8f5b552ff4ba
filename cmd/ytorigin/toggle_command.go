package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Rorqualx/ytorigin/internal/prefs"
	"github.com/Rorqualx/ytorigin/internal/tui"
)

func newToggleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Flip the mobile-to-desktop redirect in an interactive switch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ctx.ensureConfig(cmd)

			store, err := prefs.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open preference store: %w", err)
			}
			defer store.Close()

			m, err := tui.Run(cmd.Context(), prefs.Redirect(store), store.Backend())
			if err != nil {
				return err
			}
			if m.Changed() {
				log.Info().Bool("enabled", m.Enabled()).Msg("Redirect preference saved")
			}
			return m.Err()
		},
	}
}
