package isolate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/tana-dev/tana-edge/capability"
)

// Wire framing. The guest embeds host calls in stderr as \x00TANA:{json}\x00;
// the harness emits the invocation result into stdout as
// \x00TANA_RESULT:{json}\x00. Both frame kinds go through markerScanner.
const (
	callPrefix   = "\x00TANA:"
	resultPrefix = "\x00TANA_RESULT:"
	frameEnd     = 0x00
)

// markerScanner incrementally splits a byte stream into frame payloads and
// passthrough output. A frame is prefix + payload + NUL; everything outside
// frames is ordinary guest output. Partial frames stay buffered until the
// closing NUL arrives, including a prefix cut across writes.
type markerScanner struct {
	prefix string
	buf    []byte
	out    bytes.Buffer
}

// feed consumes data and returns the payloads of every frame it completes.
func (s *markerScanner) feed(data []byte) []string {
	s.buf = append(s.buf, data...)

	var payloads []string
	for {
		start := bytes.Index(s.buf, []byte(s.prefix))
		if start == -1 {
			keep := prefixOverlap(s.buf, s.prefix)
			s.out.Write(s.buf[:len(s.buf)-keep])
			s.buf = append(s.buf[:0], s.buf[len(s.buf)-keep:]...)
			return payloads
		}

		s.out.Write(s.buf[:start])
		frame := s.buf[start+len(s.prefix):]

		end := bytes.IndexByte(frame, frameEnd)
		if end == -1 {
			s.buf = append(s.buf[:0], s.buf[start:]...)
			return payloads
		}

		payloads = append(payloads, string(frame[:end]))
		s.buf = append(s.buf[:0], frame[end+1:]...)
	}
}

// output returns everything forwarded outside frames so far. A buffered
// partial frame is not included.
func (s *markerScanner) output() string { return s.out.String() }

// prefixOverlap reports how many trailing bytes of buf could still grow into
// prefix on the next write.
func prefixOverlap(buf []byte, prefix string) int {
	max := len(prefix) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for k := max; k > 0; k-- {
		if string(buf[len(buf)-k:]) == prefix[:k] {
			return k
		}
	}
	return 0
}

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// protocolHandler serves host calls arriving on the guest's stderr. Each
// completed call frame dispatches into the registry and the reply goes back
// as one JSON line on the guest's stdin. The guest blocks on that line after
// every call, so at most one reply is ever in flight; the pump goroutine
// exists only because the pipe write cannot complete until the guest turns
// around to read it.
type protocolHandler struct {
	ctx      context.Context
	registry *capability.Registry
	scanner  markerScanner
	replies  chan []byte
	done     chan struct{}
	mu       sync.Mutex
}

func newProtocolHandler(ctx context.Context, registry *capability.Registry, stdinWriter *io.PipeWriter) *protocolHandler {
	p := &protocolHandler{
		ctx:      ctx,
		registry: registry,
		scanner:  markerScanner{prefix: callPrefix},
		replies:  make(chan []byte, 1),
		done:     make(chan struct{}),
	}
	go p.pump(stdinWriter)
	return p
}

func (p *protocolHandler) pump(w *io.PipeWriter) {
	for {
		select {
		case reply := <-p.replies:
			if _, err := w.Write(reply); err != nil {
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	payloads := p.scanner.feed(data)
	p.mu.Unlock()

	for _, payload := range payloads {
		p.replies <- p.reply(payload)
	}
	return len(data), nil
}

func (p *protocolHandler) reply(payload string) []byte {
	var resp callResponse

	var req callRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		resp.Error = "invalid call format"
	} else if fn, ok := p.registry.Get(req.Fn); !ok {
		resp.Error = "unknown operation: " + req.Fn
	} else if result, err := fn(p.ctx, req.Args); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Data = result
	}

	data, _ := json.Marshal(resp)
	return append(data, '\n')
}

// Stderr returns the guest's plain stderr output seen so far.
func (p *protocolHandler) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scanner.output()
}

// close stops the reply pump. Call once, after the guest has exited.
func (p *protocolHandler) close() {
	close(p.done)
}
