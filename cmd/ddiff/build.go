package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ddiff-io/ddiff/transfer"
)

var buildCmd = &cobra.Command{
	Use:   "build <docker build args>...",
	Short: "Build an image and package it as a diff against its base",
	Long: `Runs a regular image build with the given arguments, then packages the
built image as a diff against the base image named by the Dockerfile's
first FROM instruction. Requires a -t tag among the build arguments.`,
	Args: cobra.MinimumNArgs(1),
	// Build arguments pass through to the engine untouched.
	DisableFlagParsing: true,
	RunE:               runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	targetRef := buildArgValue(args, "-t", "--tag")
	if targetRef == "" {
		return fmt.Errorf("build requires a -t <image:tag> argument")
	}
	dockerfile := buildArgValue(args, "-f", "--file")
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	baseRef, err := baseImageFrom(dockerfile)
	if err != nil {
		return err
	}
	log.Info(ctx, "resolved base image from build file", map[string]interface{}{
		"file": dockerfile,
		"base": baseRef,
	})

	eng := newEngine(log)
	if err := eng.Build(ctx, args); err != nil {
		return err
	}

	packer := &transfer.Packer{
		Client:    newClient(cfg, log),
		Engine:    eng,
		Host:      host,
		Flatten:   cfg.Registry.FlattenRepositories,
		WorkDir:   cfg.Transfer.WorkDir,
		OutputDir: cfg.Transfer.OutputDir,
		Log:       log,
	}
	archivePath, err := packer.Pack(ctx, baseRef, targetRef)
	if err != nil {
		return err
	}

	fmt.Println(archivePath)
	return nil
}

// buildArgValue finds the value following any of the given flags in a raw
// argument list, also accepting the --flag=value form.
func buildArgValue(args []string, flags ...string) string {
	for i, arg := range args {
		for _, flag := range flags {
			if arg == flag && i+1 < len(args) {
				return args[i+1]
			}
			if strings.HasPrefix(arg, flag+"=") {
				return strings.TrimPrefix(arg, flag+"=")
			}
		}
	}
	return ""
}

// baseImageFrom reads the first FROM instruction of a Dockerfile, dropping
// any build-stage alias.
func baseImageFrom(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToUpper(line), "FROM ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		return fields[1], nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return "", fmt.Errorf("no FROM instruction found in %s", path)
}
