package tail

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// DefaultChunkSize is the backward read step used when none is configured.
const DefaultChunkSize = 1024

const newline = '\n'

// Reader reads lines from files on a filesystem. The zero value is not usable;
// construct one with NewReader.
type Reader struct {
	fs        afero.Fs
	chunkSize int
}

// NewReader returns a reader over fs. A nil fs selects the OS filesystem and a
// non-positive chunkSize selects DefaultChunkSize.
func NewReader(fs afero.Fs, chunkSize int) *Reader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{fs: fs, chunkSize: chunkSize}
}

// ChunkSize reports the backward read step in bytes.
func (r *Reader) ChunkSize() int {
	return r.chunkSize
}

// LastLines returns the last n lines of the file at path in file order. A
// single trailing newline terminates the final line; an unterminated final
// line still counts. Blank lines are kept.
func (r *Reader) LastLines(path string, n int) ([]string, error) {
	file, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	size := info.Size()
	if n <= 0 || size == 0 {
		return []string{}, nil
	}

	pos := size
	last := make([]byte, 1)
	if err := readFull(file, last, size-1); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if last[0] == newline {
		pos--
	}

	// Collected newest first; reversed before returning.
	reversed := make([][]byte, 0, n)
	var leftover []byte
	for pos > 0 && len(reversed) < n {
		start := pos - int64(r.chunkSize)
		if start < 0 {
			start = 0
		}
		chunk := make([]byte, pos-start, pos-start+int64(len(leftover)))
		if err := readFull(file, chunk, start); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		pos = start

		parts := bytes.Split(append(chunk, leftover...), []byte{newline})
		leftover = parts[0]
		for i := len(parts) - 1; i >= 1 && len(reversed) < n; i-- {
			reversed = append(reversed, parts[i])
		}
	}
	if pos == 0 && len(reversed) < n {
		reversed = append(reversed, leftover)
	}

	lines := make([]string, len(reversed))
	for i, raw := range reversed {
		lines[len(reversed)-1-i] = decodeLine(raw)
	}
	return lines, nil
}

// NewLines returns the non-blank complete lines written after offset from and
// the offset just past the last complete line. An unterminated trailing line
// is left for a later call. When the file is not larger than from, no lines
// are returned and the offset is unchanged.
func (r *Reader) NewLines(path string, from int64) ([]string, int64, error) {
	if from < 0 {
		from = 0
	}
	file, err := r.fs.Open(path)
	if err != nil {
		return nil, from, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, from, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size <= from {
		return nil, from, nil
	}

	buf := make([]byte, size-from)
	read, err := file.ReadAt(buf, from)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, from, fmt.Errorf("read %s: %w", path, err)
	}
	buf = buf[:read]

	end := bytes.LastIndexByte(buf, newline)
	if end < 0 {
		return nil, from, nil
	}

	var lines []string
	for _, raw := range bytes.Split(buf[:end], []byte{newline}) {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		lines = append(lines, decodeLine(raw))
	}
	return lines, from + int64(end) + 1, nil
}

func readFull(file io.ReaderAt, buf []byte, offset int64) error {
	n, err := file.ReadAt(buf, offset)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
