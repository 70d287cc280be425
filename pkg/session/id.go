package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// sessionIDBytes is the number of random bytes in a session id. Hex
// encoding doubles it to 64 characters.
const sessionIDBytes = 32

func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
