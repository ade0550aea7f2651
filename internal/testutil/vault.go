package testutil

import (
	"pbk-go/internal/pbk"
	"pbk-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() pbk.Vault {
	return vault.NewMemoryVault("test-vault")
}
