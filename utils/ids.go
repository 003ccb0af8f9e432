package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// WorkflowID derives an opaque 64 char id from the natural parts of a
// request plus a random nonce. Two submissions with the same parts still get
// distinct ids; deduplication is the idempotency token's job.
func WorkflowID(parts ...string) string {
	seed := strings.Join(append(parts, uuid.NewString()), ":")
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}
