package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stylewct/pkg/cache"
	"github.com/matzehuels/stylewct/pkg/config"
	"github.com/matzehuels/stylewct/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached results",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, err := c.newCache(ctx, false)
			if err != nil {
				return err
			}
			defer cc.Close()

			clearer, ok := cc.(cache.Clearer)
			if !ok {
				printInfo("Caching is disabled")
				return nil
			}
			count, err := clearer.Clear(ctx)
			if err != nil {
				return errors.Wrap(errors.ErrCodeCache, err, "clear cache")
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached results", count)
			printDetail("Location: %s", c.cacheLocation())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where cached results are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(c.cacheLocation())
			return nil
		},
	}
}

// cacheLocation describes the configured backend: a directory for the file
// cache, a redis:// address otherwise.
func (c *CLI) cacheLocation() string {
	switch c.cfg.Cache.Backend {
	case config.BackendRedis:
		return fmt.Sprintf("redis://%s/%d", c.cfg.Cache.RedisAddr, c.cfg.Cache.RedisDB)
	case config.BackendNone:
		return "none"
	}
	dir, err := c.cacheDir()
	if err != nil {
		return "unavailable: " + err.Error()
	}
	return dir
}
