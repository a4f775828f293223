// Package cli はflashstageのコマンドラインを提供する
package cli

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/zurustar/flashstage/pkg/config"
	"github.com/zurustar/flashstage/pkg/logger"
)

type commandContext struct {
	configFlag string
	logLevel   string
	logFormat  string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

// ensureConfig は設定ファイルと環境変数を一度だけ読み込む
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// NewRootCommand はflashstageのコマンドツリーを組み立てる
func NewRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "flashstage",
		Short:         "Play exported animation bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// フラグは設定ファイルと環境変数より優先
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.Logging.Level = strings.ToLower(ctx.logLevel)
			}
			if flags.Changed("log-format") {
				cfg.Logging.Format = strings.ToLower(ctx.logFormat)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return logger.InitLoggerWithFormat(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	pf.StringVarP(&ctx.logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&ctx.logFormat, "log-format", "auto", "Log format (text, json, auto)")

	rootCmd.AddCommand(newPlayCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
