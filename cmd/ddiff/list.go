package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddiff-io/ddiff/engine"
	"github.com/ddiff-io/ddiff/oci"
)

var listCmd = &cobra.Command{
	Use:   "list <image>",
	Short: "Push an image and list the blob digests its manifest references",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	eng := newEngine(log)
	if err := engine.PushImages(ctx, eng, host, cfg.Registry.FlattenRepositories, args[0]); err != nil {
		return err
	}

	ref := engine.PrepareReference(args[0], cfg.Registry.FlattenRepositories)
	client := newClient(cfg, log)
	data, mediaType, err := client.FetchManifest(ctx, ref.Repository, ref.Tag)
	if err != nil {
		return err
	}
	if err := oci.ValidateMediaType(mediaType); err != nil {
		return err
	}
	manifest, err := oci.ParseManifest(data)
	if err != nil {
		return err
	}

	blobs, err := manifest.BlobList()
	if err != nil {
		return err
	}
	for _, d := range blobs {
		fmt.Println(d.Hex)
	}
	return nil
}
