package logging

import (
	"bytes"
	"fmt"
	"os"
)

// DefaultRingSize caps the background log file. The extension can run many
// times between app launches, so the file must not grow without bound.
const DefaultRingSize = 512 * 1024 // 512 KiB

// RingFile is an append-only log file with a size cap. When a write would
// push the file past the cap, the oldest half is discarded and the newest
// tail kept, cut at a line boundary.
//
// RingFile does not synchronize; the Logger serializes all writes.
type RingFile struct {
	path string
	max  int64
	file *os.File
	size int64
}

// OpenRingFile opens or creates the ring file at path with the given cap.
// An existing oversized file is compacted on open.
func OpenRingFile(path string, max int64) (*RingFile, error) {
	if max <= 0 {
		max = DefaultRingSize
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ring file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat ring file: %w", err)
	}

	r := &RingFile{
		path: path,
		max:  max,
		file: file,
		size: info.Size(),
	}

	if r.size > r.max {
		if err := r.compact(); err != nil {
			file.Close()
			return nil, err
		}
	}

	if _, err := file.Seek(r.size, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek ring file: %w", err)
	}

	return r, nil
}

// Write implements io.Writer.
func (r *RingFile) Write(p []byte) (int, error) {
	if r.size+int64(len(p)) > r.max {
		if err := r.compact(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// compact keeps the newest half of the file, starting at a line boundary,
// and rewrites it from offset zero.
func (r *RingFile) compact() error {
	buf := make([]byte, r.size)
	if _, err := r.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("failed to read ring file: %w", err)
	}

	keepFrom := r.size - r.max/2
	if keepFrom < 0 {
		keepFrom = 0
	}
	if idx := bytes.IndexByte(buf[keepFrom:], '\n'); idx >= 0 {
		keepFrom += int64(idx) + 1
	}
	tail := buf[keepFrom:]

	if err := r.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate ring file: %w", err)
	}
	if _, err := r.file.WriteAt(tail, 0); err != nil {
		return fmt.Errorf("failed to rewrite ring file: %w", err)
	}
	r.size = int64(len(tail))
	if _, err := r.file.Seek(r.size, 0); err != nil {
		return fmt.Errorf("failed to seek ring file: %w", err)
	}
	return nil
}

// Size returns the current file size in bytes.
func (r *RingFile) Size() int64 {
	return r.size
}

// Path returns the file path.
func (r *RingFile) Path() string {
	return r.path
}

// Close closes the underlying file.
func (r *RingFile) Close() error {
	return r.file.Close()
}
