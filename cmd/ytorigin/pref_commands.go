package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rorqualx/ytorigin/internal/prefs"
	"github.com/Rorqualx/ytorigin/internal/types"
)

func newPrefCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pref",
		Short: "Read or write the redirect preference",
	}
	cmd.AddCommand(newPrefGetCommand(ctx))
	cmd.AddCommand(newPrefSetCommand(ctx))
	return cmd
}

func newPrefGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the redirect preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ctx.ensureConfig(cmd)
			store, err := prefs.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open preference store: %w", err)
			}
			defer store.Close()

			pref := prefs.Redirect(store)
			enabled, err := pref.Enabled(cmd.Context())
			if err != nil && !errors.Is(err, types.ErrInvalidPrefValue) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%t (%s)\n", pref.Key(), enabled, store.Backend())
			return nil
		},
	}
}

func newPrefSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <on|off>",
		Short: "Store the redirect preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := prefs.ParseBool(args[0])
			if err != nil {
				return err
			}

			cfg := ctx.ensureConfig(cmd)
			store, err := prefs.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open preference store: %w", err)
			}
			defer store.Close()

			pref := prefs.Redirect(store)
			if err := pref.Set(cmd.Context(), enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%t (%s)\n", pref.Key(), enabled, store.Backend())
			return nil
		},
	}
}
