package stream

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
)

// SSERelay frames relay events as Server-Sent Events: an `event:` line naming
// the envelope type followed by a `data:` line with the JSON body. The first
// failed write, or cancellation of the request context, closes the relay;
// everything after that is dropped so a disconnected client never aborts the
// run mid-tool.
type SSERelay struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	ctx     context.Context
	closed  bool
	done    bool
	logger  *log.Logger
}

// NewSSERelay wraps an event-stream response writer. The caller must have set
// the text/event-stream headers and written the status before the first
// emission. Returns false when the writer cannot flush.
func NewSSERelay(ctx context.Context, w io.Writer) (*SSERelay, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &SSERelay{
		w:       w,
		flusher: flusher,
		ctx:     ctx,
		logger:  log.New(log.Writer(), "[STREAM] ", log.LstdFlags),
	}, true
}

func (r *SSERelay) Progress(label string) {
	r.emit("progress", map[string]any{"progress": label})
}

func (r *SSERelay) Chunk(fragment string) {
	r.emit("chunk", map[string]any{"chunk": fragment})
}

func (r *SSERelay) Final(payload any) {
	r.terminal("done", finalEnvelope(payload))
}

func (r *SSERelay) Error(message string) {
	r.terminal("error", map[string]any{"error": message})
}

func (r *SSERelay) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed || r.ctx.Err() != nil
}

func (r *SSERelay) emit(event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write(event, payload)
}

// terminal emits at most once; a second terminal event is a producer bug and
// is dropped.
func (r *SSERelay) terminal(event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.write(event, payload)
}

func (r *SSERelay) write(event string, payload map[string]any) {
	if r.closed || r.ctx.Err() != nil {
		r.closed = true
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Printf("drop %s event: marshal: %v", event, err)
		return
	}
	if _, err := r.w.Write([]byte("event: " + event + "\n")); err != nil {
		r.close(err)
		return
	}
	if _, err := r.w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		r.close(err)
		return
	}
	r.flusher.Flush()
}

func (r *SSERelay) close(err error) {
	if !r.closed {
		r.logger.Printf("client gone, closing stream: %v", err)
	}
	r.closed = true
}
