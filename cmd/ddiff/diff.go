package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddiff-io/ddiff/transfer"
)

var diffCmd = &cobra.Command{
	Use:   "diff <base-image> <target-image>",
	Short: "Package the target image as a diff against the base image",
	Long: `Pushes both images to the working registry, computes which blobs the
target shares with the base, and writes an archive carrying only the
target-exclusive blobs plus the target manifest.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
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

	packer := &transfer.Packer{
		Client:    newClient(cfg, log),
		Engine:    newEngine(log),
		Host:      host,
		Flatten:   cfg.Registry.FlattenRepositories,
		WorkDir:   cfg.Transfer.WorkDir,
		OutputDir: cfg.Transfer.OutputDir,
		Log:       log,
	}

	archivePath, err := packer.Pack(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Println(archivePath)
	return nil
}
