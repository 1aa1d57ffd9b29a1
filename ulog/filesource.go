package ulog

import (
	"errors"
	"io"
	"os"
)

// FileSource adapts an *os.File to ByteSource via ReadAt, the common case for
// ulogcat and any other command-line consumer of this package.
type FileSource struct {
	f    *os.File
	size int64
}

// NewFileSource wraps f. f is not closed by FileSource; the caller owns it.
func NewFileSource(f *os.File) *FileSource {
	return &FileSource{f: f}
}

func (s *FileSource) Open() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	s.size = info.Size()
	return s.size, nil
}

func (s *FileSource) Read(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (s *FileSource) Size() int64 {
	return s.size
}
