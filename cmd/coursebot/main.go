package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/m3rciful/coursebot/app"
	"github.com/m3rciful/coursebot/core/buildinfo"
	corecmd "github.com/m3rciful/coursebot/core/cmd"
)

const defaultConfigPath = "config.yaml"

func main() {
	// A missing .env is fine; real deployments pass the environment directly.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "coursebot",
		Short:        "Telegram bot for running courses",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Version:      buildinfo.Version,
		RunE:         func(cmd *cobra.Command, _ []string) error { return runBot(cmd.Context(), configPath) },
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config (default $CONFIG_PATH or "+defaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the bot",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return runBot(cmd.Context(), configPath) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return migrate(cmd.Context(), configPath) },
		},
	)
	return root
}

func runBot(ctx context.Context, configPath string) error {
	return corecmd.Run(ctx, corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			c, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.Bootstrap(ctx, c)
		},
	})
}

func migrate(ctx context.Context, configPath string) error {
	path, err := corecmd.ResolveConfigPath(configPath, "", defaultConfigPath)
	if err != nil {
		return err
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return app.Migrate(ctx, cfg)
}
