package object

import "strings"

const (
	maxNameLength = 255
	fallbackName  = "unnamed"
)

// SanitizeName strips path separators, quote characters and control
// characters from a user-supplied display name, caps its length and falls
// back to a fixed placeholder when nothing survives.
func SanitizeName(name string) string {
	cleaned := stripDangerous(name)
	if cleaned == "" {
		return fallbackName
	}
	return cleaned
}

// SanitizeFolder cleans a virtual folder segment the same way names are
// cleaned. Empty input (or input that sanitizes to nothing) means root and is
// reported as "".
func SanitizeFolder(folder string) string {
	return stripDangerous(folder)
}

func stripDangerous(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '/' || r == '\\':
		case r == '"' || r == '\'' || r == '`':
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	cleaned = strings.Trim(cleaned, ".")
	if len(cleaned) > maxNameLength {
		cleaned = cleaned[:maxNameLength]
	}
	return strings.TrimSpace(cleaned)
}
