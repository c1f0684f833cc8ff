package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ddiff-io/ddiff/logger"
)

// Docker shells out to the docker CLI.
type Docker struct {
	Binary string
	Log    logger.Logger
}

// NewDocker creates a Docker engine using the docker binary on PATH.
func NewDocker(log logger.Logger) *Docker {
	return &Docker{Binary: "docker", Log: log}
}

func (d *Docker) run(ctx context.Context, args ...string) error {
	d.Log.Debug(ctx, "running container engine command", map[string]interface{}{
		"command": d.Binary + " " + strings.Join(args, " "),
	})

	out, err := exec.CommandContext(ctx, d.Binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s failed: %w: %s", d.Binary, args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Tag creates target as a new tag of source.
func (d *Docker) Tag(ctx context.Context, source, target string) error {
	return d.run(ctx, "tag", source, target)
}

// Push pushes ref to its registry.
func (d *Docker) Push(ctx context.Context, ref string) error {
	return d.run(ctx, "push", ref)
}

// Pull pulls ref from its registry.
func (d *Docker) Pull(ctx context.Context, ref string) error {
	return d.run(ctx, "pull", ref)
}

// Remove deletes the local image reference.
func (d *Docker) Remove(ctx context.Context, ref string) error {
	return d.run(ctx, "rmi", ref)
}

// Build runs a docker build with the given raw arguments.
func (d *Docker) Build(ctx context.Context, args []string) error {
	return d.run(ctx, append([]string{"build"}, args...)...)
}
