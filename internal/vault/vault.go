package vault

import (
	"fmt"
	"io"
	"strings"
)

// tmpPrefix marks in-flight uploads in directory-backed vaults.
const tmpPrefix = ".tmp-"

// validateName rejects archive names that could address anything outside
// the vault's flat namespace.
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("archive name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid archive name: %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("archive name must not contain path separators: %q", name)
	case strings.HasPrefix(name, tmpPrefix):
		return fmt.Errorf("archive name uses reserved prefix %q: %q", tmpPrefix, name)
	}
	return nil
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
