package main

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/Rorqualx/ytorigin/internal/config"
)

// commandContext loads the configuration once per invocation and applies
// the persistent flag overrides on top of the environment.
type commandContext struct {
	logLevel     string
	logJSON      bool
	dataDir      string
	prefsBackend string

	configOnce sync.Once
	config     *config.Config
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) *config.Config {
	c.configOnce.Do(func() {
		cfg := config.Load()
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.LogLevel = c.logLevel
		}
		if flags.Changed("log-json") {
			cfg.LogJSON = c.logJSON
		}
		if flags.Changed("data-dir") {
			cfg.DataDir = c.dataDir
		}
		if flags.Changed("prefs-backend") {
			cfg.PrefsBackend = c.prefsBackend
		}

		// Logging first so validation warnings are visible.
		setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogJSON)
		cfg.Validate()
		setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogJSON)

		c.config = cfg
	})
	return c.config
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "ytorigin",
		Short:         "Keep YouTube videos on their original audio track",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.BoolVar(&ctx.logJSON, "log-json", false, "Write logs as JSON lines")
	flags.StringVar(&ctx.dataDir, "data-dir", "", "Directory for the preference database and lock file")
	flags.StringVar(&ctx.prefsBackend, "prefs-backend", "", "Preference store: sqlite, redis or memory")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newToggleCommand(ctx))
	rootCmd.AddCommand(newPrefCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
