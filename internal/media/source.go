package media

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Reader is the byte access a Source hands out for tag decoding.
type Reader interface {
	io.ReadSeeker
	io.ReaderAt
	io.Closer
}

// Source is a raw audio file selected by the user. A Source is owned by exactly
// one track; Close releases whatever it holds.
type Source interface {
	// Name is the display name, usually the file's base name.
	Name() string
	// Size is the byte length of the underlying data.
	Size() int64
	// Open returns an independent seekable reader positioned at offset 0.
	Open() (Reader, error)
	// MediaRef is the reference the playback engine loads.
	MediaRef() string
	Close() error
}

// FileSource is a Source backed by a file on disk.
type FileSource struct {
	path string
	size int64
}

// OpenFile stats path and returns a FileSource for it.
func OpenFile(path string) (*FileSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileSource{path: abs, size: info.Size()}, nil
}

// OpenFiles builds a FileSource for every path, stopping at the first error.
// Sources opened before the failure are closed.
func OpenFiles(paths []string) ([]Source, error) {
	out := make([]Source, 0, len(paths))
	for _, p := range paths {
		src, err := OpenFile(p)
		if err != nil {
			CloseAll(out)
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (s *FileSource) Name() string     { return filepath.Base(s.path) }
func (s *FileSource) Size() int64      { return s.size }
func (s *FileSource) MediaRef() string { return s.path }
func (s *FileSource) Close() error     { return nil }

func (s *FileSource) Open() (Reader, error) {
	return os.Open(s.path)
}

// MemorySource is a Source holding its bytes in memory.
type MemorySource struct {
	name string
	ref  string

	mu     sync.Mutex
	data   []byte
	closed bool
}

// NewMemorySource wraps data under the given display name. ref is what the
// playback engine is asked to load; it may be empty for tag-only sources.
func NewMemorySource(name string, data []byte, ref string) *MemorySource {
	return &MemorySource{name: name, data: data, ref: ref}
}

func (s *MemorySource) Name() string     { return s.name }
func (s *MemorySource) MediaRef() string { return s.ref }

func (s *MemorySource) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.data))
}

func (s *MemorySource) Open() (Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, os.ErrClosed
	}
	return nopCloser{bytes.NewReader(s.data)}, nil
}

// Close drops the buffered bytes. Further Open calls fail.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

// Closed reports whether Close has been called.
func (s *MemorySource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseAll closes every source, returning the first error.
func CloseAll(srcs []Source) error {
	var first error
	for _, s := range srcs {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
