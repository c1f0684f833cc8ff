package seed

import (
	"sync"

	"github.com/ddiff-io/ddiff/oci"
)

// digestSet tracks digests claimed for download across workers. It is an
// advisory optimization only; blob presence in the store remains the
// source of truth for whether a download is needed.
type digestSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newDigestSet() *digestSet {
	return &digestSet{set: map[string]struct{}{}}
}

// Claim marks the digest as in flight. Returns false when another worker
// already claimed it.
func (s *digestSet) Claim(d oci.DigestInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := d.String()
	if _, ok := s.set[key]; ok {
		return false
	}
	s.set[key] = struct{}{}
	return true
}

// Remove releases a claim after a failed download so a later image can
// retry the blob.
func (s *digestSet) Remove(d oci.DigestInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, d.String())
}
