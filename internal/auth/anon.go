package auth

// Anonymous pseudo-identity tokens are opaque client-generated ids carried
// in a header. They only need to be stable per device, not verifiable, so
// validation is a shape check.

const (
	anonTokenMinLen = 16
	anonTokenMaxLen = 64
)

// ValidAnonToken reports whether a client-supplied anonymous id is
// acceptable: bounded length, URL-safe characters only.
func ValidAnonToken(token string) bool {
	if len(token) < anonTokenMinLen || len(token) > anonTokenMaxLen {
		return false
	}
	for _, c := range token {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// AnonSubject namespaces an anonymous token so it can never collide with
// an account user id in reaction rows.
func AnonSubject(token string) string {
	return "anon:" + token
}
