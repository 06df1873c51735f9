package common

import (
	"crypto/rand"
)

// RandomBytes returns n bytes from the system CSPRNG. It panics when the
// system randomness source fails, since no meaningful recovery exists and
// continuing with weak randomness would be worse than crashing.
func RandomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("system randomness source failed: " + err.Error())
	}
	return buf
}
