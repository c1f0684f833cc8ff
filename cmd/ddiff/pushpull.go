package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddiff-io/ddiff/engine"
)

var pushCmd = &cobra.Command{
	Use:   "push <image>...",
	Short: "Push local images to the working registry",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull <image>...",
	Short: "Pull images from the working registry into the local engine store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPull,
}

func init() {
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	host, err := registryHost(cfg)
	if err != nil {
		return err
	}
	return engine.PushImages(ctx, newEngine(log), host, cfg.Registry.FlattenRepositories, args...)
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	host, err := registryHost(cfg)
	if err != nil {
		return err
	}
	return engine.PullImages(ctx, newEngine(log), host, cfg.Registry.FlattenRepositories, args...)
}
