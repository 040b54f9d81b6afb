package main

import (
	"sync"

	"github.com/spf13/cobra"

	"parley/config"
	"parley/internal/app"
)

// commandContext carries lazily built shared state between commands.
// The service (and with it the cache) is only assembled for commands
// that talk to the backend or the audio devices.
type commandContext struct {
	verbose     bool
	backendFlag string

	once sync.Once
	cfg  *config.Config
	err  error
	svc  *app.Service
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		c.cfg, c.err = config.Load()
		if c.err != nil {
			return
		}
		if c.backendFlag != "" {
			c.cfg.Backend.BaseURL = c.backendFlag
		}
	})
	return c.cfg, c.err
}

func (c *commandContext) ensureService() (*app.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if c.svc == nil {
		c.svc = app.New(cfg)
	}
	return c.svc, nil
}

func (c *commandContext) shutdown() {
	if c.svc != nil {
		c.svc.Shutdown()
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "parley",
		Short:         "Record, transcribe, and translate parent-teacher conferences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(ctx.verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.shutdown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ctx.backendFlag, "backend", "", "Backend base URL (overrides config)")

	rootCmd.AddCommand(newRecordCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newTranslateCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newPlayCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newLanguagesCommand(ctx))

	return rootCmd
}
