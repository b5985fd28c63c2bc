package reasoning

import (
	"encoding/json"
	"strings"

	"github.com/agentpulse/engine/internal/domain"
)

// ExtractJSON pulls the first balanced JSON object out of free text and
// unmarshals it into dst. Reasoning providers routinely wrap structured
// output in prose or markdown fences; this tolerates both.
func ExtractJSON(text string, dst any) error {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return domain.ErrReasoningMalformed
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					if err := json.Unmarshal([]byte(text[start:i+1]), dst); err != nil {
						return domain.WrapAgentError(domain.ErrReasoningMalformed.Code, "unmarshal extracted JSON", err)
					}
					return nil
				}
			}
		}
	}
	return domain.ErrReasoningMalformed
}
