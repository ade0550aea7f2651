package testutil

import (
	"fmt"
	"sync"

	"pbk-go/internal/pbk"
)

// StubIntegrityChecker reports every database intact unless a failure was
// registered for its path. It records the paths it was asked about.
type StubIntegrityChecker struct {
	mu       sync.Mutex
	failures map[string]error
	checked  []string
}

// NewStubIntegrityChecker creates a checker that passes every database.
func NewStubIntegrityChecker() *StubIntegrityChecker {
	return &StubIntegrityChecker{failures: make(map[string]error)}
}

// Fail makes checks of path fail with an error wrapping pbk.ErrIntegrity.
func (c *StubIntegrityChecker) Fail(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[path] = fmt.Errorf("%w: page 3 is never used", pbk.ErrIntegrity)
}

// Pass clears a failure registered with Fail.
func (c *StubIntegrityChecker) Pass(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failures, path)
}

func (c *StubIntegrityChecker) CheckIntegrity(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = append(c.checked, path)
	return c.failures[path]
}

// Checked returns the paths checked so far, in order.
func (c *StubIntegrityChecker) Checked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.checked...)
}

var _ pbk.IntegrityChecker = (*StubIntegrityChecker)(nil)
