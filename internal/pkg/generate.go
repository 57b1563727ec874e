package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"github.com/google/uuid"
)

// GenerateNewSessionID - generates a new unique connection session ID.
func GenerateNewSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-session-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}

// GenerateRoomID - generates a unique identifier for a match room.
func GenerateRoomID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(99999999))
	if err != nil {
		return ""
	}
	return n.String()
}

// GenerateTransactionRef - generates a ledger transaction reference.
func GenerateTransactionRef() string {
	return uuid.NewString()
}
