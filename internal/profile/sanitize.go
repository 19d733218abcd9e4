package profile

import (
	"regexp"
	"strings"
)

// MaxFieldLength caps any user-sourced value embedded in a profile.
const MaxFieldLength = 255

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// Sanitize makes a user-sourced value safe to embed in a single profile line. Line
// breaks and tabs become spaces, anything outside printable ASCII and the angle
// brackets that delimit inline blocks are removed, whitespace runs collapse to one
// space and the result is trimmed and capped at MaxFieldLength.
func Sanitize(value string) string {
	if value == "" {
		return ""
	}

	var builder strings.Builder
	builder.Grow(len(value))
	for _, r := range value {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			builder.WriteByte(' ')
		case r == '<' || r == '>' || r < 0x20 || r > 0x7e:
			continue
		default:
			builder.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(builder.String()), " ")
	if len(out) > MaxFieldLength {
		out = strings.TrimSpace(out[:MaxFieldLength])
	}
	return out
}

// FileName derives a download file name from a username.
func FileName(username string) string {
	base := unsafeFileChars.ReplaceAllString(strings.ReplaceAll(Sanitize(username), " ", "_"), "")
	base = strings.Trim(base, ".")
	if base == "" {
		base = "client"
	}
	return base + ".ovpn"
}
