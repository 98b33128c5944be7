package bikeshare

import (
	"io"
	"path"
	"time"
)

// SourceFile identifies one retrievable raw file (a monthly trip CSV) and the
// modification time reported by wherever it is retrieved from. Name is the
// partition key written to the source_file column of every aggregate row
// computed from the file.
type SourceFile struct {
	Name         string
	LastModified time.Time
}

// Base returns the last path element of the source name; it is recorded as
// csv_file.
func (s SourceFile) Base() string {
	return path.Base(s.Name)
}

// NamedReadCloser is a raw file being read, along with its identity.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
}

// RawSource hands out raw files one at a time. NextReader returns io.EOF when
// there are no more files.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}
