package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	codeBytes    = 3
	codeValidity = 10 * time.Minute
)

// GenerateCode returns a 6-character hex one-time code from crypto/rand.
func GenerateCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CodeExpiry returns when a code issued at now stops being valid.
func CodeExpiry(now time.Time) time.Time {
	return now.Add(codeValidity)
}
