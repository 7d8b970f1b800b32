package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// MaxLineSize bounds a single streamed line. Dify workflow events can carry
// whole documents, so the cap is generous; a longer line ends the sequence with
// an error wrapping bufio.ErrTooLong.
const MaxLineSize = 16 << 20

// Payloads yields the trimmed payload of every data line in r, in order.
// Lines without the data prefix and blank keep-alive lines are skipped.
// A read error is yielded once as the final element.
func Payloads(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			payload, ok := bytes.CutPrefix(line, []byte(DataPrefix))
			if !ok {
				continue
			}
			if !yield(string(bytes.TrimSpace(payload)), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("sse: line longer than %d bytes: %w", MaxLineSize, err)
			}
			yield("", err)
		}
	}
}
