// Package sse parses newline-delimited "data:" event streams from chat completion
// providers into accumulated reasoning and answer text.
//
// Network reads do not line up with line boundaries, so Parser keeps the
// unterminated tail of the stream between writes and only ever parses complete
// lines. Records that fail to parse are skipped: providers interleave keep-alive
// noise and terminators such as "[DONE]" with the data the caller wants.
package sse

import (
	"bytes"
	"errors"
	"io"

	"github.com/aschepis/backscratcher/galaxy/llm"
)

const (
	// DataPrefix marks the lines that carry a record.
	DataPrefix = "data:"

	// DefaultChunkSize is the read size used by ReadFrom.
	DefaultChunkSize = 128
)

// ErrNoData is returned by ParseLine for lines without the data prefix.
var ErrNoData = errors.New("sse: line has no data prefix")

// Extractor pulls the reasoning and answer fragments out of one record payload.
// An error means the payload is not a record this extractor understands.
type Extractor func(payload []byte) (llm.Delta, error)

// Option configures a Parser.
type Option func(*Parser)

// WithChunkSize sets the read size used by ReadFrom.
func WithChunkSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// Parser accumulates deltas from a stream delivered in arbitrary fragments.
// It implements io.Writer and io.ReaderFrom. A Parser is owned by one stream
// and is not safe for concurrent use.
type Parser struct {
	extract   Extractor
	chunkSize int
	buf       []byte
	acc       llm.Accumulator
	records   int
	skipped   int
}

// NewParser creates a parser that uses extract for every data line.
func NewParser(extract Extractor, opts ...Option) *Parser {
	p := &Parser{
		extract:   extract,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Write consumes one fragment. Complete lines are parsed immediately; the
// trailing partial line is buffered until the next Write or Flush.
// Write never fails.
func (p *Parser) Write(chunk []byte) (int, error) {
	p.buf = append(p.buf, chunk...)

	consumed := 0
	for {
		i := bytes.IndexByte(p.buf[consumed:], '\n')
		if i < 0 {
			break
		}
		p.processLine(p.buf[consumed : consumed+i])
		consumed += i + 1
	}
	if consumed > 0 {
		p.buf = append(p.buf[:0], p.buf[consumed:]...)
	}
	return len(chunk), nil
}

// ReadFrom reads r to EOF in chunks of the configured size, feeding each
// chunk to Write. It does not flush; call Flush once the stream is done.
func (p *Parser) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, p.chunkSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			_, _ = p.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Flush parses any buffered content as a final line, which may lack a
// terminator, and returns the accumulated result.
func (p *Parser) Flush() llm.Result {
	if len(p.buf) > 0 {
		p.processLine(p.buf)
		p.buf = p.buf[:0]
	}
	return p.acc.Result()
}

// Result returns the text accumulated from complete lines so far.
func (p *Parser) Result() llm.Result {
	return p.acc.Result()
}

// Records returns the number of data lines that parsed successfully.
func (p *Parser) Records() int {
	return p.records
}

// Skipped returns the number of data lines whose payload could not be parsed.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Buffered returns the number of bytes of the pending partial line.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

func (p *Parser) processLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	delta, err := ParseLine(line, p.extract)
	switch {
	case errors.Is(err, ErrNoData):
		return
	case err != nil:
		p.skipped++
		return
	}
	p.records++
	p.acc.Add(delta)
}

// ParseLine parses one complete line. It holds no state, so parsing the same
// line twice yields the same delta.
func ParseLine(line []byte, extract Extractor) (llm.Delta, error) {
	line = bytes.TrimSpace(line)
	payload, ok := bytes.CutPrefix(line, []byte(DataPrefix))
	if !ok {
		return llm.Delta{}, ErrNoData
	}
	return extract(bytes.TrimSpace(payload))
}

// Consume reads a whole stream through a new parser and returns the final result
// along with the parser, which carries the record and skip counts.
// On a read error the text accumulated before the failure is returned with it.
func Consume(r io.Reader, extract Extractor, opts ...Option) (llm.Result, *Parser, error) {
	p := NewParser(extract, opts...)
	if _, err := p.ReadFrom(r); err != nil {
		return p.Flush(), p, err
	}
	return p.Flush(), p, nil
}
