package commands

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/danish45007/seenindex/internal/canonical"
)

// forEachLine calls fn with every newline-separated line of r. The '\n'
// delimiter is never part of the line; any other byte, a '\r' included, is
// hashed as is. A final line without a delimiter is passed whole. The context
// is checked between lines.
func forEachLine(ctx context.Context, r io.Reader, canonicalize bool, fn func(line []byte)) (int, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = trimLine(line)
			if canonicalize {
				line = []byte(canonical.URL(string(line)))
			}
			fn(line)
			count++
		}
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}

// trimLine drops the trailing "\n", if any.
func trimLine(line []byte) []byte {
	line, _ = bytes.CutSuffix(line, []byte("\n"))
	return line
}
