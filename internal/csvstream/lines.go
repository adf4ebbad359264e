// Package csvstream turns a streamed CSV payload into a lazy sequence of
// header-keyed records without materializing the payload in memory.
//
// It is split into two pull-based layers:
//
//   - LineReader: wraps a chunked HTTP response body and yields one
//     physical text line per call.
//   - RecordReader: consumes the first line as a header and parses each
//     subsequent logical record, rejoining physical lines when a quoted
//     field spans more than one.
package csvstream

import (
	"bufio"
	"io"
	"strings"
)

// lineBufferSize is the initial bufio buffer. Individual lines may grow
// past it; the reader never buffers beyond the line being assembled.
const lineBufferSize = 64 * 1024

// LineReader yields successive lines from a stream. Each call to Next
// pulls exactly one line; the underlying reader is never read ahead of
// the consumer beyond bufio's fixed buffer.
type LineReader struct {
	r     *bufio.Reader
	first bool
}

// NewLineReader wraps r. The reader handles \n and \r\n line endings and
// strips a UTF-8 BOM from the first line (Windows-exported CSVs).
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:     bufio.NewReaderSize(r, lineBufferSize),
		first: true,
	}
}

// Next returns the next line without its line terminator. End of stream
// is reported as io.EOF; any other error is a transport failure from the
// underlying reader. A final line with no trailing newline is returned
// before io.EOF.
func (lr *LineReader) Next() (string, error) {
	line, err := lr.r.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", err
		}
		if line == "" {
			return "", io.EOF
		}
		// Final line without a terminator
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	if lr.first {
		lr.first = false
		line = strings.TrimPrefix(line, "\ufeff")
	}

	return line, nil
}
