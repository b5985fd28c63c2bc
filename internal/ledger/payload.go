package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agentpulse/engine/internal/domain"
)

// MaxPayloadBytes is the ledger's per-write payload ceiling.
const MaxPayloadBytes = 900

// maxSummaryLen caps the declared summary on-ledger, matching the 64-char
// name limit the on-chain program enforces.
const maxSummaryLen = 64

// Payload is the parsed form of one on-ledger memo written by this agent.
type Payload struct {
	Type       domain.ActionType
	HashPrefix string
	Summary    string
	Timestamp  int64
}

// EncodePayload builds the memo string committed to the ledger:
//
//	<namespace>|<type>|<hash prefix>|<summary>|<unix ts>
//
// The summary is truncated, never the hash prefix, when the payload would
// exceed the ceiling. Pipes inside the summary are replaced so the format
// stays parseable.
func EncodePayload(namespace string, rec domain.ActionRecord) (string, error) {
	summary := trimBytes(strings.ReplaceAll(rec.Summary, "|", "/"), maxSummaryLen)

	prefix := Prefix(rec.ContentHash)
	encode := func(s string) string {
		return fmt.Sprintf("%s|%s|%s|%s|%d", namespace, rec.Type, prefix, s, rec.CreatedAt)
	}

	payload := encode(summary)
	if len(payload) > MaxPayloadBytes {
		overhead := len(payload) - len(summary)
		room := MaxPayloadBytes - overhead
		if room < 0 {
			// Even an empty summary cannot fit; the fixed fields are oversized.
			return "", domain.ErrPayloadTooLarge
		}
		payload = encode(trimBytes(summary, room))
	}
	return payload, nil
}

// trimBytes shortens s to at most max bytes without splitting a UTF-8 rune.
func trimBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// ParsePayload parses a memo string previously written by this agent.
// Returns ErrPayloadMalformed for unrelated ledger traffic.
func ParsePayload(namespace, memo string) (*Payload, error) {
	parts := strings.SplitN(memo, "|", 5)
	if len(parts) != 5 || parts[0] != namespace {
		return nil, domain.ErrPayloadMalformed
	}

	ts, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil, domain.ErrPayloadMalformed
	}
	if parts[2] == "" {
		return nil, domain.ErrPayloadMalformed
	}

	return &Payload{
		Type:       domain.ActionType(parts[1]),
		HashPrefix: parts[2],
		Summary:    parts[3],
		Timestamp:  ts,
	}, nil
}
