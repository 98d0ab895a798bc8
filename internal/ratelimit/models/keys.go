package models

import "strings"

// SanitizeKeySegment escapes the ':' delimiter so an identifier such as an
// IPv6 address cannot spill into adjacent key segments.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
