package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stylewct/internal/server"
	"github.com/matzehuels/stylewct/pkg/model"
	"github.com/matzehuels/stylewct/pkg/store"
)

// apiCacheScope keeps server results apart from CLI results when both share
// a Redis cache.
const apiCacheScope = "api:"

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve style transfer over HTTP",
		Long: `Serve style transfer over HTTP.

POST /v1/stylize takes multipart "content" and "style" images (and an
optional "saliency" map) and returns the stylized PNG. GET /v1/runs lists
recent runs and GET /healthz reports the build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			if !cmd.Flags().Changed("addr") {
				addr = c.cfg.Server.Addr
			}

			defaults, err := c.cfg.Options()
			if err != nil {
				return err
			}
			if err := defaults.ValidateAndSetDefaults(); err != nil {
				return err
			}

			runner, err := c.newRunner(ctx, noCache, apiCacheScope)
			if err != nil {
				return err
			}
			defer runner.Close()

			runs, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			if runs == nil {
				logger.Info("keeping run history in memory")
				runs = store.NewMemoryStore(0)
			}
			defer runs.Close(context.WithoutCancel(ctx))

			srv := server.New(server.Config{
				Runner:         runner,
				Store:          runs,
				Defaults:       defaults,
				Image:          c.cfg.Image,
				Align:          model.Align,
				MaxUploadBytes: int64(c.cfg.Server.MaxUploadMB) << 20,
				Logger:         logger.WithPrefix("http"),
			})
			printKeyValue("listen", addr)
			printKeyValue("cache", c.cacheLocation())
			printKeyValue("method", string(defaults.Method))
			printKeyValue("levels", fmt.Sprint(len(defaults.Targets)))
			err = srv.ListenAndServe(ctx, addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from settings, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")
	return cmd
}
