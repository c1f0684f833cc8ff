package registrytest

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// uploadSession tracks an in-progress blob upload on the fake registry.
type uploadSession struct {
	UUID       string
	Repository string
	StartedAt  time.Time
}

// sessionManager manages upload sessions in memory.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*uploadSession
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*uploadSession)}
}

// Create opens a new upload session and returns its UUID.
func (sm *sessionManager) Create(repository string) (string, error) {
	uuid, err := generateUUID()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}

	sm.mu.Lock()
	sm.sessions[uuid] = &uploadSession{
		UUID:       uuid,
		Repository: repository,
		StartedAt:  time.Now(),
	}
	sm.mu.Unlock()

	return uuid, nil
}

// Get retrieves a session by UUID.
func (sm *sessionManager) Get(uuid string) (*uploadSession, bool) {
	sm.mu.Lock()
	session, ok := sm.sessions[uuid]
	sm.mu.Unlock()
	return session, ok
}

// Delete removes a session by UUID.
func (sm *sessionManager) Delete(uuid string) {
	sm.mu.Lock()
	delete(sm.sessions, uuid)
	sm.mu.Unlock()
}

// generateUUID generates a random UUID v4.
func generateUUID() (string, error) {
	var uuid [16]byte
	_, err := rand.Read(uuid[:])
	if err != nil {
		return "", err
	}
	// Set version 4 and variant bits
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16]), nil
}
