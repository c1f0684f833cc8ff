// Package transfer implements the image diff pipeline: computing the blob
// set difference between two manifests, packaging the difference into a
// portable archive, and replaying it against a destination registry.
package transfer

import (
	"github.com/ddiff-io/ddiff/oci"
)

// Partition splits a target image's blobs by their relation to a base
// image: Mountable blobs are shared with the base and can be
// cross-repository mounted; Exclusive blobs exist only in the target and
// must travel in the package.
type Partition struct {
	Mountable []oci.DigestInfo
	Exclusive []oci.DigestInfo
}

// ComputeDiff partitions the target manifest's blobs against the base
// manifest's. Digests are compared as algorithm-qualified strings. Both
// classes preserve the target's blob-list order for deterministic output.
func ComputeDiff(base, target *oci.Manifest) (Partition, error) {
	baseBlobs, err := base.BlobList()
	if err != nil {
		return Partition{}, err
	}
	targetBlobs, err := target.BlobList()
	if err != nil {
		return Partition{}, err
	}

	baseSet := make(map[string]struct{}, len(baseBlobs))
	for _, d := range baseBlobs {
		baseSet[d.String()] = struct{}{}
	}

	var part Partition
	seen := make(map[string]struct{}, len(targetBlobs))
	for _, d := range targetBlobs {
		key := d.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, ok := baseSet[key]; ok {
			part.Mountable = append(part.Mountable, d)
		} else {
			part.Exclusive = append(part.Exclusive, d)
		}
	}
	return part, nil
}
