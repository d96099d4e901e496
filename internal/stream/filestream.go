package stream

import (
	"os"

	"github.com/pkg/errors"
)

// FileStream is the boundary the parse driver and serializer read/write
// through. Spec §1 marks ownership of open/close/mmap as an external
// collaborator; this is the reference implementation that boundary is
// exercised against (see SPEC_FULL.md §E.3), and it is swappable via
// WithFileStream for tests that want an in-memory stream instead of a real
// file.
type FileStream interface {
	// Bytes returns the full mapped contents for reading.
	Bytes() ([]byte, error)
	// Truncate grows or shrinks the backing file to exactly size bytes and
	// returns a fresh writable mapping over it.
	Truncate(size int64) ([]byte, error)
	// Close releases any mapping and the underlying file descriptor.
	Close() error
}

// Opener constructs a FileStream for a given path and read/write intent.
type Opener func(path string, writable bool) (FileStream, error)

// OpenFile is the default Opener, backed by a real file and a platform
// memory mapping.
func OpenFile(path string, writable bool) (FileStream, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "skillrt: open %s", path)
	}
	return &fileStream{f: f, writable: writable}, nil
}

type fileStream struct {
	f        *os.File
	mapped   []byte
	writable bool
}

func (fs *fileStream) mmap() ([]byte, error) {
	if fs.writable {
		return mmapFileWritable(fs.f)
	}
	return mmapFile(fs.f)
}

func (fs *fileStream) Bytes() ([]byte, error) {
	if fs.mapped != nil {
		return fs.mapped, nil
	}
	data, err := fs.mmap()
	if err != nil {
		return nil, err
	}
	fs.mapped = data
	return data, nil
}

func (fs *fileStream) Truncate(size int64) ([]byte, error) {
	if fs.mapped != nil {
		if err := munmapFile(fs.mapped); err != nil {
			return nil, err
		}
		fs.mapped = nil
	}
	if err := fs.f.Truncate(size); err != nil {
		return nil, errors.Wrap(err, "skillrt: truncate")
	}
	if size == 0 {
		return []byte{}, nil
	}
	data, err := fs.mmap()
	if err != nil {
		return nil, err
	}
	fs.mapped = data
	return data, nil
}

func (fs *fileStream) flushUnmapped() error {
	return writeBackAndUnmap(fs.f, fs.mapped)
}

func (fs *fileStream) Close() error {
	var err error
	if fs.mapped != nil {
		if fs.writable {
			err = fs.flushUnmapped()
		} else {
			err = munmapFile(fs.mapped)
		}
		fs.mapped = nil
	}
	if cerr := fs.f.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "skillrt: close")
	}
	return err
}

// MemStream is an in-memory FileStream, useful for tests and for the
// WithFileStream option (SPEC_FULL.md §A.2).
type MemStream struct {
	Data []byte
}

// NewMemStream creates an in-memory stream seeded with data.
func NewMemStream(data []byte) *MemStream {
	return &MemStream{Data: append([]byte(nil), data...)}
}

func (m *MemStream) Bytes() ([]byte, error) { return m.Data, nil }

func (m *MemStream) Truncate(size int64) ([]byte, error) {
	if int64(len(m.Data)) >= size {
		m.Data = m.Data[:size]
	} else {
		m.Data = append(m.Data, make([]byte, size-int64(len(m.Data)))...)
	}
	return m.Data, nil
}

func (m *MemStream) Close() error { return nil }
