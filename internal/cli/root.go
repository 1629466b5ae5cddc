package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/stylewct/pkg/buildinfo"
	"github.com/matzehuels/stylewct/pkg/observability"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// Before any subcommand runs, the log level is set from --verbose, the
// settings file is loaded, and the logger is attached to the command context.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Stylewct renders images in the style of others",
		Long: `Stylewct transfers the style of one image onto another with whitening and
coloring transforms applied over a pyramid of feature levels.`,
		Version:       buildinfo.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := LogInfo
			if c.verbose {
				level = LogDebug
				hooks := newLogHooks(c.Logger)
				observability.SetPipelineHooks(hooks)
				observability.SetCacheHooks(hooks)
			}
			c.SetLogLevel(level)
			if err := c.loadConfig(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "settings file (default: user config dir/stylewct/config.toml)")

	root.AddCommand(c.stylizeCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
