package testutil

import (
	"pbk-go/internal/encryption"
	"pbk-go/internal/pbk"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() pbk.Encryptor {
	return encryption.NewTestEncryptor()
}
