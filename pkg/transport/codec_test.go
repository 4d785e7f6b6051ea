package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeExactHeader(t *testing.T) {
	n, err := protocol.NewNotification(protocol.MethodExit, nil)
	require.NoError(t, err)

	frame, err := Encode(n)
	require.NoError(t, err)
	assert.Equal(t, "Content-Length: 33\r\n\r\n{\"jsonrpc\":\"2.0\",\"method\":\"exit\"}", string(frame))
}

func TestFrameReaderSequence(t *testing.T) {
	input := "Content-Length: 2\r\n\r\n{}" +
		"Content-Type: application/vscode-jsonrpc; charset=utf-8\r\ncontent-length: 4\r\n\r\nnull" +
		"Content-Length:  0 \r\n\r\n"

	fr := NewFrameReader(strings.NewReader(input), 0, nil)

	for _, want := range []string{"{}", "null", ""} {
		payload, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, want, string(payload))
	}

	_, err := fr.Read()
	assert.Equal(t, io.EOF, err)
}

func TestFrameReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing length", "Content-Type: text/plain\r\n\r\n{}"},
		{"invalid length", "Content-Length: abc\r\n\r\n{}"},
		{"negative length", "Content-Length: -1\r\n\r\n"},
		{"malformed header", "Content-Length 2\r\n\r\n{}"},
		{"truncated header", "Content-Length: 2\r\n"},
		{"truncated payload", "Content-Length: 10\r\n\r\n{}"},
		{"too large", "Content-Length: 1000\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := NewFrameReader(strings.NewReader(tt.input), 100, nil)
			_, err := fr.Read()
			require.Error(t, err)
			assert.True(t, errors.Is(err, rpcerrors.ErrFraming), "got %v", err)
		})
	}
}

func TestFrameReaderHugeDeclaredLength(t *testing.T) {
	input := "Content-Length: 9000000000000000000\r\n\r\n{}"

	// Without a cap the declared length is never allocated up front
	fr := NewFrameReader(strings.NewReader(input), 0, nil)
	_, err := fr.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, rpcerrors.ErrFraming)
	assert.Contains(t, err.Error(), "truncated payload")

	fr = NewFrameReader(strings.NewReader(input), DefaultMaxFrameSize, nil)
	_, err = fr.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, rpcerrors.ErrFraming)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestFrameReaderMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(observability.MetricsConfig{Registerer: registry})
	require.NoError(t, err)

	fr := NewFrameReader(strings.NewReader("Content-Length: 2\r\n\r\n{}Content-Length: x\r\n\r\n"), 0, metrics)
	_, err = fr.Read()
	require.NoError(t, err)
	_, err = fr.Read()
	require.Error(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			values[family.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["lsp_framing_errors_total"])
	assert.Equal(t, 2.0, values["lsp_frame_bytes_total"])
}

func TestFrameWriterConcurrentFramesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, nil)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := protocol.NewNotification("test/event", map[string]string{"payload": strings.Repeat(fmt.Sprint(i), 100)})
			if assert.NoError(t, err) {
				assert.NoError(t, fw.Write(n))
			}
		}(i)
	}
	wg.Wait()

	fr := NewFrameReader(&buf, 0, nil)
	for i := 0; i < writers; i++ {
		payload, err := fr.Read()
		require.NoError(t, err)
		msg, err := protocol.DecodeMessage(payload)
		require.NoError(t, err)
		assert.Equal(t, "test/event", msg.(*protocol.Notification).Method)
	}
	_, err := fr.Read()
	assert.Equal(t, io.EOF, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestFrameWriterError(t *testing.T) {
	fw := NewFrameWriter(failingWriter{}, nil)
	n, err := protocol.NewNotification(protocol.MethodExit, nil)
	require.NoError(t, err)

	err = fw.Write(n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrClosedPipe))
	assert.True(t, rpcerrors.IsCategory(err, rpcerrors.CategoryTransport))
}
