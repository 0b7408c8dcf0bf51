package opname

import "strings"

// Normalize lowercases and trims a scanned code and strips leading
// zeros, so "007", "7" and "7 " all compare equal. If stripping zeros
// would empty the string the trimmed original is kept ("000" stays
// "000" rather than becoming "").
func Normalize(code string) string {
	s := strings.ToLower(strings.TrimSpace(code))
	stripped := strings.TrimLeft(s, "0")
	if stripped == "" {
		return s
	}
	return stripped
}

// CodesMatch reports whether a stored code matches a scanned query.
// The match is two-pass: exact on the lowercased, trimmed values
// first, then on the normalized forms.
func CodesMatch(stored, query string) bool {
	a := strings.ToLower(strings.TrimSpace(stored))
	b := strings.ToLower(strings.TrimSpace(query))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return Normalize(a) == Normalize(b)
}
