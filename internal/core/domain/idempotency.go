package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the response of a committed wallet operation so a
// retried request replays it instead of moving money twice.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "user_id:operation:client_key"
	RequestHash  string    `json:"request_hash"`
	EntryID      uuid.UUID `json:"entry_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// Matches reports whether a retry carrying requestHash is the request this
// log settled.
func (l *IdempotencyLog) Matches(requestHash string) bool {
	return l.RequestHash == requestHash
}

var (
	// ErrIdempotencyKeyExists is returned when a concurrent request already
	// recorded the same key.
	ErrIdempotencyKeyExists = errors.New("idempotency key already recorded")
	// ErrIdempotencyMismatch marks key reuse with a different payload.
	ErrIdempotencyMismatch = errors.New("key reuse with mismatched payload")
)

// BuildIdempotencyKey scopes a client key to its caller and operation.
func BuildIdempotencyKey(userID uuid.UUID, operation, clientKey string) string {
	return userID.String() + ":" + operation + ":" + clientKey
}

// RequestHash returns the hex sha256 of the JSON encoding of a canonical
// request. Callers pass a struct with normalized fields so equal requests
// hash equal regardless of how the client formatted them.
func RequestHash(canonical any) (string, error) {
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encode request fingerprint: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
