package pbk

import "io"

// Vault provides an interface for offsite storage of backup archives.
// All operations use io.Reader/io.Writer for streaming to support large
// archives without loading them entirely into memory.
type Vault interface {
	// PutArchive stores an archive under name, replacing any existing one.
	// size is the number of bytes that will be read from r.
	PutArchive(name string, r io.Reader, size int64) error

	// GetArchive retrieves an archive by name and writes it to w.
	GetArchive(name string, w io.Writer) error

	// ListArchives returns the stored archive names in lexical order.
	ListArchives() ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
