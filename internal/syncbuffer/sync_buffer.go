// Package syncbuffer has a bytes.Buffer safe for concurrent use. Tests hand
// one to an o11y provider as its Writer and read the captured output back
// while spans are still being written.
package syncbuffer

import (
	"bytes"
	"sync"
)

// SyncBuffer is a mutex-guarded bytes.Buffer. The zero value is ready to use.
type SyncBuffer struct {
	mu  sync.RWMutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *SyncBuffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.buf.String()
}

// Reset empties the buffer, keeping its storage for reuse.
func (b *SyncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf.Reset()
}
