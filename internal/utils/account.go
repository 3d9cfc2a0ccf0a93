package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// AccountNumberLength is the fixed width of externally visible account numbers.
const AccountNumberLength = 10

// GenerateAccountNumber generates a random numeric account number. The first
// digit is never zero so the number keeps its width everywhere it is
// displayed. Uniqueness is enforced by the store; callers retry on collision.
func GenerateAccountNumber() (string, error) {
	raw := make([]byte, AccountNumberLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	builder.WriteByte(raw[0]%9 + '1')
	for _, b := range raw[1:] {
		builder.WriteByte(b%10 + '0')
	}

	number := builder.String()
	if len(number) != AccountNumberLength {
		return "", fmt.Errorf("generated account number has incorrect length: got %d, want %d", len(number), AccountNumberLength)
	}
	return number, nil
}
