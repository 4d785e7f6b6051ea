package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
)

const (
	headerContentLength = "Content-Length"
	headerSeparator     = "\r\n"

	// DefaultMaxFrameSize caps inbound payloads when no option overrides it
	DefaultMaxFrameSize = 64 << 20

	// payloads are buffered up front only up to this size; larger ones grow
	// as bytes actually arrive
	preallocLimit = 64 << 10
)

// FrameReader splits a byte stream into Content-Length framed payloads
type FrameReader struct {
	r       *bufio.Reader
	maxSize int
	metrics *observability.Metrics
}

// NewFrameReader reads frames from r. A maxSize above zero rejects frames
// that declare a larger payload.
func NewFrameReader(r io.Reader, maxSize int, metrics *observability.Metrics) *FrameReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &FrameReader{r: br, maxSize: maxSize, metrics: metrics}
}

// Read returns the next payload. It returns io.EOF when the stream ends
// cleanly between frames and a FramingError for a malformed header or a
// stream that ends mid-frame. After a FramingError the stream position is
// undefined and reading should stop.
func (fr *FrameReader) Read() ([]byte, error) {
	length := -1
	first := true

	for {
		line, err := fr.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && first && line == "" {
				return nil, io.EOF
			}
			return nil, fr.fail("truncated header", err)
		}
		first = false

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fr.fail(fmt.Sprintf("malformed header line %q", line), nil)
		}
		if !strings.EqualFold(strings.TrimSpace(name), headerContentLength) {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fr.fail(fmt.Sprintf("invalid %s %q", headerContentLength, strings.TrimSpace(value)), err)
		}
		length = n
	}

	if length < 0 {
		return nil, fr.fail("missing "+headerContentLength+" header", nil)
	}
	if fr.maxSize > 0 && length > fr.maxSize {
		return nil, fr.fail(fmt.Sprintf("frame of %d bytes exceeds limit of %d", length, fr.maxSize), nil)
	}

	var buf bytes.Buffer
	buf.Grow(min(length, preallocLimit))
	if n, err := io.CopyN(&buf, fr.r, int64(length)); err != nil {
		return nil, fr.fail(fmt.Sprintf("truncated payload, got %d of %d bytes", n, length), err)
	}

	fr.metrics.RecordFrame("inbound", length)
	return buf.Bytes(), nil
}

func (fr *FrameReader) fail(reason string, cause error) error {
	fr.metrics.RecordFramingError()
	return rpcerrors.FramingError(reason, cause)
}

// FrameWriter writes framed messages. Each Write emits one complete frame;
// concurrent writers never interleave.
type FrameWriter struct {
	mu      sync.Mutex
	w       io.Writer
	metrics *observability.Metrics
}

// NewFrameWriter writes frames to w
func NewFrameWriter(w io.Writer, metrics *observability.Metrics) *FrameWriter {
	return &FrameWriter{w: w, metrics: metrics}
}

// Write encodes msg and writes it as a single frame
func (fw *FrameWriter) Write(msg protocol.Message) error {
	payload, err := protocol.EncodeMessage(msg)
	if err != nil {
		return rpcerrors.InternalError("encode message", err)
	}
	frame := framePayload(payload)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return rpcerrors.WrapError(err, rpcerrors.CodeInternalError, "write frame",
			rpcerrors.CategoryTransport, rpcerrors.SeverityCritical)
	}
	if f, ok := fw.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return rpcerrors.WrapError(err, rpcerrors.CodeInternalError, "flush frame",
				rpcerrors.CategoryTransport, rpcerrors.SeverityCritical)
		}
	}

	fw.metrics.RecordFrame("outbound", len(payload))
	return nil
}

// Encode returns msg as a complete frame: the exact header followed by the
// JSON payload
func Encode(msg protocol.Message) ([]byte, error) {
	payload, err := protocol.EncodeMessage(msg)
	if err != nil {
		return nil, rpcerrors.InternalError("encode message", err)
	}
	return framePayload(payload), nil
}

func framePayload(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(payload) + 32)
	fmt.Fprintf(&buf, "%s: %d%s%s", headerContentLength, len(payload), headerSeparator, headerSeparator)
	buf.Write(payload)
	return buf.Bytes()
}
