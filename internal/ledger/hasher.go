// Package ledger provides write access to a public append-only ledger and
// reconstruction of previously committed action proofs.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/agentpulse/engine/internal/domain"
)

// HashPrefixLen is the number of hex characters of the content hash embedded
// in the on-ledger payload. The prefix is never truncated, whatever the
// summary length.
const HashPrefixLen = 16

// HashAction computes the canonical content hash for an action record:
// sha256 over a normalized (type, summary, timestamp, metadata) tuple.
// Metadata keys are sorted so the hash is independent of map iteration order.
func HashAction(rec domain.ActionRecord) string {
	var b strings.Builder
	b.WriteString(string(rec.Type))
	b.WriteByte('\n')
	b.WriteString(rec.Summary)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%d", rec.CreatedAt)
	b.WriteByte('\n')

	keys := make([]string, 0, len(rec.Metadata))
	for k := range rec.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(rec.Metadata[k])
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Prefix returns the fixed-length hash prefix used on-ledger.
func Prefix(hash string) string {
	if len(hash) < HashPrefixLen {
		return hash
	}
	return hash[:HashPrefixLen]
}
