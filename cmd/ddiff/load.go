package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddiff-io/ddiff/transfer"
)

var loadCmd = &cobra.Command{
	Use:   "load [base-image] <archive>",
	Short: "Replay a diff archive against the working registry",
	Long: `Pushes the base image from the local engine store, mounts the shared
blobs, uploads the archive's exclusive blobs and puts the target manifest.
An explicit base image overrides the one recorded in the archive.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
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

	var baseOverride, archivePath string
	if len(args) == 2 {
		baseOverride, archivePath = args[0], args[1]
	} else {
		archivePath = args[0]
	}

	replayer := &transfer.Replayer{
		Client:  newClient(cfg, log),
		Engine:  newEngine(log),
		Host:    host,
		Flatten: cfg.Registry.FlattenRepositories,
		WorkDir: cfg.Transfer.WorkDir,
		Log:     log,
	}
	return replayer.Load(ctx, archivePath, baseOverride)
}
