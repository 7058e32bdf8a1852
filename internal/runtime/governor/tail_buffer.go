package governor

import "sync"

// TailBuffer is an io.Writer that retains the last Limit bytes written.
// Process adapters read their result line from the end of stderr, so it must
// survive a program that floods the stream first.
type TailBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int64
	truncated bool
}

func NewTailBuffer(limit int64) *TailBuffer {
	return &TailBuffer{limit: limit}
}

func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}

	b.buf = append(b.buf, p...)
	if excess := int64(len(b.buf)) - b.limit; excess > 0 {
		b.buf = append(b.buf[:0:0], b.buf[excess:]...)
		b.truncated = true
	}
	return len(p), nil
}

func (b *TailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *TailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
