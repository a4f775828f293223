package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zurustar/flashstage/pkg/app"
	"github.com/zurustar/flashstage/pkg/logger"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var (
		root     string
		base     string
		headless bool
		timeout  int
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "play <movie>",
		Short: "Load a movie and play it",
		Long: `Load a movie bundle (a local file or an http(s) URL) and play it.

With --headless no window or audio device is opened; the movie runs until
--timeout seconds pass or the process is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("root") {
				cfg.Movie.Root = strings.TrimSpace(root)
			}
			if flags.Changed("base") {
				cfg.Movie.BaseManifestPath = base
			}
			if flags.Changed("headless") {
				cfg.Player.Headless = headless
			}
			if flags.Changed("timeout") {
				if timeout < 0 {
					return fmt.Errorf("timeout must be non-negative, got %d", timeout)
				}
				cfg.Player.Timeout = timeout
			}
			if noCache {
				cfg.Movie.Cache = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := app.New(args[0], app.Options{
				Config: cfg,
				Logger: logger.Component("app"),
			})
			if err != nil {
				return err
			}
			runErr := a.Run(cmd.Context())
			if err := a.Close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Name of the root symbol")
	cmd.Flags().StringVar(&base, "base", "", "Base path prepended to relative manifest entries")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run without a window or audio device")
	cmd.Flags().IntVarP(&timeout, "timeout", "t", 0, "Stop after the given number of seconds (0 = unlimited)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the movie cache")
	return cmd
}
