// Package secure provides memory-safe storage for credential material.
// Passwords and tokens are encrypted at rest in memory via memguard and
// only decrypted for the lifetime of a single request body.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds a sensitive value inside a memguard enclave. The
// plaintext only exists while Open's callback runs.
type Buffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// NewBuffer seals the given string into a protected buffer. The caller
// should drop its own reference to the plaintext afterwards.
func NewBuffer(value string) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave([]byte(value))}
}

// Open decrypts the buffer and passes the plaintext to fn. The locked
// buffer is wiped as soon as fn returns.
func (b *Buffer) Open(fn func(value string) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed || b.enclave == nil {
		return fn("")
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.String())
}

// Destroy marks the buffer as destroyed and prevents further use.
// Idempotent. Call memguard.Purge() at process exit for full cleanup.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
