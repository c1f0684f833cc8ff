// Package engine wraps the local container engine used to move images
// between the host image store and the configured registry. The engine is
// an external collaborator: all operations are synchronous and assumed to
// be already authenticated.
package engine

import (
	"context"

	"github.com/ddiff-io/ddiff/oci"
)

// Engine is the container engine contract.
type Engine interface {
	Tag(ctx context.Context, source, target string) error
	Push(ctx context.Context, ref string) error
	Pull(ctx context.Context, ref string) error
	Remove(ctx context.Context, ref string) error
	Build(ctx context.Context, args []string) error
}

// PrepareReference normalizes a local reference for the registry: the tag
// defaults to latest and the repository is flattened when the registry has
// nested namespaces disabled.
func PrepareReference(ref string, flatten bool) oci.Reference {
	r := oci.ParseReference(ref)
	if flatten {
		r = r.Flatten()
	}
	return r
}

// PushImages pushes each local reference to the registry at host: tag the
// local image with the registry-qualified name, push it, then drop the
// temporary tag.
func PushImages(ctx context.Context, e Engine, host string, flatten bool, refs ...string) error {
	for _, ref := range refs {
		registryTag := host + "/" + PrepareReference(ref, flatten).String()
		if err := e.Tag(ctx, ref, registryTag); err != nil {
			return err
		}
		if err := e.Push(ctx, registryTag); err != nil {
			return err
		}
		if err := e.Remove(ctx, registryTag); err != nil {
			return err
		}
	}
	return nil
}

// PullImages pulls each reference from the registry at host into the local
// image store under its unqualified name, dropping the registry-qualified
// tag afterwards.
func PullImages(ctx context.Context, e Engine, host string, flatten bool, refs ...string) error {
	for _, ref := range refs {
		registryTag := host + "/" + PrepareReference(ref, flatten).String()
		if err := e.Pull(ctx, registryTag); err != nil {
			return err
		}
		if err := e.Tag(ctx, registryTag, ref); err != nil {
			return err
		}
		if err := e.Remove(ctx, registryTag); err != nil {
			return err
		}
	}
	return nil
}
