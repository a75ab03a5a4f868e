package orchestrator

import (
	"sync"

	"github.com/aretw0/liteforge/pkg/domain"
)

// serialEmitter delivers events one at a time; stdout and stderr are copied by separate goroutines.
type serialEmitter struct {
	mu sync.Mutex
	fn domain.EmitFunc
}

func newSerialEmitter(fn domain.EmitFunc) *serialEmitter {
	return &serialEmitter{fn: fn}
}

func (s *serialEmitter) emit(e domain.Event) {
	if s.fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn(e)
}

// chunkWriter turns every Write into one output event and keeps a bounded tail.
type chunkWriter struct {
	stream domain.Stream
	out    *serialEmitter
	tail   *tail
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	chunk := domain.OutputChunk{Stream: w.stream, Data: append([]byte(nil), p...)}
	w.tail.Write(chunk.Data)
	w.out.emit(chunk.Event())
	return len(p), nil
}

// tail keeps the last limit bytes written to it.
type tail struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTail(limit int) *tail {
	return &tail{limit: limit}
}

func (t *tail) Write(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if t.limit > 0 && len(t.buf) > t.limit {
		t.buf = append([]byte(nil), t.buf[len(t.buf)-t.limit:]...)
	}
}

func (t *tail) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}
