package domain

import "strings"

// SanitizePrefix turns a configured backup prefix into a safe file name part.
//
// Letters are lowercased, digits, hyphens and underscores are kept, spaces and
// path separators become hyphens and everything else is dropped. Leading and
// trailing hyphens are trimmed.
//
// Example:
//
//	SanitizePrefix("Equipos")        // returns "equipos"
//	SanitizePrefix("../Prod DB!")    // returns "prod-db"
func SanitizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ', r == '/', r == '\\':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
