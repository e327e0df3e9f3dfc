package session

import (
	"crypto/rand"
	"encoding/base64"
)

// codeBytes gives 128 bits of entropy, rendered as 22 URL-safe characters.
const codeBytes = 16

// GenerateCode returns a new session code drawn entirely from the OS
// entropy source. Codes are deliberately independent of course, faculty and
// timestamp so they cannot be enumerated from session metadata.
func GenerateCode() string {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; there is no
		// degraded mode that would still be a secret.
		panic("session: entropy source unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
