package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/ddiff-io/ddiff/engine"
	"github.com/ddiff-io/ddiff/logger"
	"github.com/ddiff-io/ddiff/registry"
)

// Build information, injected at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ddiff",
	Short: "Move container images as diffs against a shared base image",
	Long: `ddiff packages the difference between two container images into a
portable archive, replays such archives against a registry that already
holds the base image, and seeds registry stores directly from an upstream
registry.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *Config) logger.Logger {
	return logger.NewLogrusLogger(cfg.Log.Level)
}

func newClient(cfg *Config, log logger.Logger) *registry.Client {
	return registry.NewClient(cfg.Registry.URL, registry.WithLogger(log))
}

func newEngine(log logger.Logger) engine.Engine {
	return engine.NewDocker(log)
}

// registryHost is the host[:port] the container engine tags images with,
// derived from the registry URL.
func registryHost(cfg *Config) (string, error) {
	u, err := url.Parse(cfg.Registry.URL)
	if err != nil {
		return "", fmt.Errorf("invalid registry URL %q: %w", cfg.Registry.URL, err)
	}
	if u.Host == "" {
		// A bare host:port parses with an empty Host; use the raw value.
		return cfg.Registry.URL, nil
	}
	return u.Host, nil
}
