package message

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	sifterr "github.com/sarsift/sarsift/internal/errors"
)

// JSONLSource reads raw parsed messages from a JSON-lines stream, one
// RawMessage object per line. This is the file-based collaborator boundary
// used by the CLI: the MIME parser that produced the stream is external.
type JSONLSource struct {
	r       io.ReadCloser
	scanner *bufio.Scanner
}

// NewJSONLSource creates a source reading from r. The source owns r and
// closes it when exhausted or on Close.
func NewJSONLSource(r io.ReadCloser) *JSONLSource {
	sc := bufio.NewScanner(r)
	// Bodies can be large; allow lines up to 16 MiB.
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &JSONLSource{r: r, scanner: sc}
}

// OpenJSONLFile opens a JSONL message file as a Source.
func OpenJSONLFile(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodeSourceRead, err)
	}
	return NewJSONLSource(f), nil
}

// Next returns the next message, or io.EOF at end of stream.
// A malformed line is a per-message parse error; the caller may skip it
// and call Next again.
func (s *JSONLSource) Next(ctx context.Context) (*RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw RawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, sifterr.Wrap(sifterr.ErrCodeMessageParse, err)
		}
		return &raw, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, sifterr.Wrap(sifterr.ErrCodeSourceRead, err)
	}
	_ = s.r.Close()
	return nil, io.EOF
}

// Close releases the underlying reader.
func (s *JSONLSource) Close() error {
	return s.r.Close()
}

// SliceSource serves messages from memory. Used in tests and by callers
// that already hold parsed messages.
type SliceSource struct {
	msgs []*RawMessage
	pos  int
}

// NewSliceSource creates a source over msgs.
func NewSliceSource(msgs []*RawMessage) *SliceSource {
	return &SliceSource{msgs: msgs}
}

// Next returns the next message, or io.EOF when exhausted.
func (s *SliceSource) Next(ctx context.Context) (*RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.msgs) {
		return nil, io.EOF
	}
	m := s.msgs[s.pos]
	s.pos++
	return m, nil
}
