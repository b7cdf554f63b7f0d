package source

import (
	"fmt"

	"fortio.org/safecast"
)

// File is a single loaded source file: its path and raw bytes.
type File struct {
	Path string
	Data []byte
}

// FileSet interns files so Spans can be resolved back to text, used by
// the diagnostic pretty-printer.
type FileSet struct {
	files []File
	index map[string]FileID
}

// NewFileSet creates an empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{index: make(map[string]FileID)}
}

// Add registers file content under path, returning a fresh FileID.
func (fs *FileSet) Add(path string, data []byte) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("source: file set overflow: %w", err))
	}
	id := FileID(n + 1)
	fs.files = append(fs.files, File{Path: path, Data: data})
	fs.index[path] = id
	return id
}

// Get returns the file for id, or the zero File if id is out of range.
func (fs *FileSet) Get(id FileID) File {
	idx := int(id) - 1
	if fs == nil || idx < 0 || idx >= len(fs.files) {
		return File{}
	}
	return fs.files[idx]
}

// Text extracts the bytes covered by span, clamped to the file bounds.
func (fs *FileSet) Text(span Span) []byte {
	f := fs.Get(span.File)
	if f.Data == nil {
		return nil
	}
	start, end := int(span.Start), int(span.End)
	if start < 0 {
		start = 0
	}
	if end > len(f.Data) {
		end = len(f.Data)
	}
	if start > end {
		return nil
	}
	return f.Data[start:end]
}
