package ids

import (
	"encoding/base64"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for request
// correlation and storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Buid returns a 22-character URL-safe identifier derived from a random UUID.
// It is the public identifier format for users, organizations, teams, clients
// and sessions.
func Buid() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:])
}

// BuidToUUID converts a 22-character buid back to its canonical UUID string.
func BuidToUUID(buid string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(buid)
	if err != nil || len(raw) != 16 {
		return "", false
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// UUIDToBuid converts a canonical UUID string to its 22-character buid form.
func UUIDToBuid(s string) (string, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return base64.RawURLEncoding.EncodeToString(u[:]), true
}
