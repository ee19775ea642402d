package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/relay"
)

const hexDigits = "0123456789abcdef"

// SanitizeArguments returns args as valid JSON. Raw control characters inside
// string literals, which models occasionally emit, are re-escaped. Empty
// arguments become an empty object. Input that is still invalid after
// sanitizing yields an error wrapping relay.ErrSerialization.
func SanitizeArguments(args json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" {
		return json.RawMessage(`{}`), nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}
	fixed := escapeControlChars(trimmed)
	if !json.Valid([]byte(fixed)) {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", relay.ErrSerialization)
	}
	return json.RawMessage(fixed), nil
}

// escapeControlChars escapes bytes below 0x20 that appear inside string
// literals. Bytes outside strings are copied as is.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
