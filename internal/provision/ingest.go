package provision

import (
	"strings"

	"eduvpn.org/wg-provision/internal/wgconf"
)

// DefaultClientName is used when a foreign configuration carries no usable
// identifier.
const DefaultClientName = "client"

// SanitizeName strips every character outside [A-Za-z0-9_-]. It is
// idempotent and never fails; an empty result falls back to
// DefaultClientName at the call sites that need a total identifier.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseForeignConfig validates pasted configuration text and extracts a
// sanitized identifier for it. Validation order: empty text, then a missing
// [Interface] section, then a missing PrivateKey inside it. The identifier
// comes from the first word of the comment line directly above [Interface];
// when absent or fully stripped by sanitization, DefaultClientName is used,
// so identifier extraction alone never fails.
func ParseForeignConfig(raw string) (*wgconf.Document, string, error) {
	if isBlank(raw) {
		return nil, "", &InvalidConfigError{Reason: "empty"}
	}

	doc := wgconf.Parse([]byte(raw))
	iface := doc.Interface()
	if iface == nil {
		return nil, "", &InvalidConfigError{Reason: "missing interface section"}
	}
	if _, ok := iface.Get("PrivateKey"); !ok {
		return nil, "", &InvalidConfigError{Reason: "missing private key"}
	}

	name := DefaultClientName
	if fields := strings.Fields(iface.Comment); len(fields) > 0 {
		if sanitized := SanitizeName(fields[0]); sanitized != "" {
			name = sanitized
		}
	}
	return doc, name, nil
}

func isBlank(raw string) bool {
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}
