package oneapi

import (
	"bufio"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/pkg/types"
)

// StreamReader reads normalized fragments from a streaming response body.
// It is not safe for concurrent use; call Recv from a single goroutine.
type StreamReader struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	parser   provider.StreamParser
	provider string
	model    string
	logger   *slog.Logger

	started   time.Time
	firstByte time.Duration

	onClose   func()
	closeOnce sync.Once
	closed    bool
}

// statelessParser adapts a provider's line parser to the stream parser
// shape for vendors whose protocol carries no cross-line state.
type statelessParser struct {
	prov provider.Provider
}

func (s statelessParser) Parse(data []byte) (*types.StreamChunk, error) {
	return s.prov.ParseStreamChunk(data)
}

func newStreamReader(body io.ReadCloser, prov provider.Provider, model string, logger *slog.Logger, onClose func()) *StreamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 4096), 1024*1024)

	var parser provider.StreamParser
	if sp, ok := prov.(provider.StreamParserProvider); ok {
		parser = sp.NewStreamParser()
	} else {
		parser = statelessParser{prov: prov}
	}

	return &StreamReader{
		body:     body,
		scanner:  scanner,
		parser:   parser,
		provider: prov.Name(),
		model:    model,
		logger:   logger,
		started:  time.Now(),
		onClose:  onClose,
	}
}

// Recv returns the next fragment of the stream. It returns io.EOF when the
// stream ends normally. A single malformed line is logged and skipped; only
// a broken connection surfaces as an error.
func (s *StreamReader) Recv() (*types.StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		chunk, err := s.parser.Parse(line)
		if err != nil {
			parseErr := errors.NewStreamParseError(s.provider, s.model, err)
			s.logger.Warn("skipping malformed stream line",
				"provider", s.provider, "model", s.model, "error", parseErr)
			continue
		}
		if chunk == nil {
			continue
		}

		if s.firstByte == 0 {
			s.firstByte = time.Since(s.started)
			s.logger.Debug("first stream fragment",
				"provider", s.provider, "model", s.model, "ttft", s.firstByte)
		}
		if chunk.Model == "" {
			chunk.Model = s.model
		}
		return chunk, nil
	}

	if err := s.scanner.Err(); err != nil {
		s.Close()
		return nil, errors.NewStreamTransportError(s.provider, s.model, err)
	}

	s.Close()
	return nil, io.EOF
}

// TimeToFirstToken reports the latency of the first fragment, or zero if
// none has arrived yet.
func (s *StreamReader) TimeToFirstToken() time.Duration {
	return s.firstByte
}

// Close releases the underlying connection and the rate-limiter slot.
// It is idempotent and safe to call after Recv returned io.EOF.
func (s *StreamReader) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed = true
		err = s.body.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}
