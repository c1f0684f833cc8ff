package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ddiff-io/ddiff/oci"
	"github.com/ddiff-io/ddiff/registry"
	"github.com/ddiff-io/ddiff/seed"
	"github.com/ddiff-io/ddiff/store"
)

var seedFlags struct {
	images   []string
	out      string
	workers  int
	driver   string
	s3Bucket string
	s3Region string
	s3Prefix string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate a registry store from an upstream registry",
	Long: `Downloads manifests and blobs for the given images from the upstream
registry and writes them in the on-disk layout a registry server reads
directly. Single-segment image names resolve under the library/ namespace.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringSliceVar(&seedFlags.images, "images", nil, "images to seed, repository[:tag]")
	seedCmd.Flags().StringVar(&seedFlags.out, "out", "./registry-data", "store directory for the filesystem driver")
	seedCmd.Flags().IntVar(&seedFlags.workers, "workers", 0, "concurrent image downloads (0 uses the configured default)")
	seedCmd.Flags().StringVar(&seedFlags.driver, "driver", "filesystem", "store driver: filesystem or s3")
	seedCmd.Flags().StringVar(&seedFlags.s3Bucket, "s3-bucket", "", "bucket for the s3 driver")
	seedCmd.Flags().StringVar(&seedFlags.s3Region, "s3-region", "us-east-1", "region for the s3 driver")
	seedCmd.Flags().StringVar(&seedFlags.s3Prefix, "s3-prefix", "", "key prefix for the s3 driver")
	seedCmd.MarkFlagRequired("images")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	var driver store.Driver
	switch seedFlags.driver {
	case "filesystem":
		driver = store.NewFilesystem(seedFlags.out)
	case "s3":
		if seedFlags.s3Bucket == "" {
			return fmt.Errorf("the s3 driver requires --s3-bucket")
		}
		driver, err = store.NewS3(ctx, seedFlags.s3Bucket, seedFlags.s3Region, seedFlags.s3Prefix)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown store driver %q", seedFlags.driver)
	}

	refs := make([]oci.Reference, 0, len(seedFlags.images))
	for _, image := range seedFlags.images {
		refs = append(refs, oci.ParseReference(image).WithHubNamespace())
	}

	workers := seedFlags.workers
	if workers == 0 {
		workers = cfg.Seed.Workers
	}

	seeder := &seed.Seeder{
		NewClient: func() *registry.Client {
			return registry.NewClient(cfg.Seed.SourceURL,
				registry.WithHTTPClient(&http.Client{Timeout: 10 * time.Minute}),
				registry.WithTokenSource(registry.NewHubTokenSource(cfg.Seed.AuthURL, cfg.Seed.AuthService)),
				registry.WithLogger(log),
			)
		},
		Store:   driver,
		Workers: workers,
		Log:     log,
	}

	start := time.Now()
	results, failures, err := seeder.Run(ctx, refs)
	if err != nil {
		return err
	}

	log.Info(ctx, "seeding finished", map[string]interface{}{
		"seeded":   len(results),
		"failed":   len(failures),
		"duration": time.Since(start).Round(time.Second).String(),
	})
	for _, res := range results {
		fmt.Printf("seeded %s:%s %s\n", res.Repository, res.Tag, res.ManifestDigest)
	}
	for _, f := range failures {
		fmt.Printf("failed %s:%s: %v\n", f.Repository, f.Tag, f.Err)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d images failed to seed", len(failures), len(refs))
	}
	return nil
}
