// Package chunk splits a byte stream into fixed-size segments carrying
// absolute byte-range metadata for ranged upload requests.
package chunk

import (
	"errors"
	"fmt"
	"io"
)

// DefaultSize is the upload chunk size: 32000 KiB per request.
const DefaultSize = 32000 * 1024

// Chunk is one bounded segment of a stream. Start and End are inclusive
// offsets relative to the whole stream.
type Chunk struct {
	Data  []byte
	Size  int64
	Start int64
	End   int64
}

// Split consumes rc until end-of-stream and returns the ordered chunk
// sequence covering it. Every chunk except the last holds exactly size
// bytes; consecutive chunks are contiguous. The reader is closed on both
// success and failure paths.
func Split(rc io.ReadCloser, size int64) ([]Chunk, error) {
	defer rc.Close()

	if size <= 0 {
		return nil, fmt.Errorf("chunk: invalid chunk size %d", size)
	}

	var (
		chunks []Chunk
		offset int64
	)

	for {
		buf := make([]byte, size)

		n, err := io.ReadFull(rc, buf)
		if n > 0 {
			chunks = append(chunks, Chunk{
				Data:  buf[:n],
				Size:  int64(n),
				Start: offset,
				End:   offset + int64(n) - 1,
			})
			offset += int64(n)
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return chunks, nil
		}

		if err != nil {
			return nil, fmt.Errorf("chunk: reading stream at offset %d: %w", offset, err)
		}
	}
}

// Total returns the stream length covered by a chunk sequence.
func Total(chunks []Chunk) int64 {
	if len(chunks) == 0 {
		return 0
	}

	return chunks[len(chunks)-1].End + 1
}
