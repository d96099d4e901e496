//go:build unix

package stream

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// mmapFile memory-maps the full contents of f for reading.
func mmapFile(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "skillrt: stat")
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "skillrt: mmap")
	}
	return data, nil
}

func munmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(unix.Munmap(data), "skillrt: munmap")
}

// writeBackAndUnmap releases a writable MAP_SHARED mapping; its contents
// are already visible to the underlying file, so this is just munmap.
func writeBackAndUnmap(f *os.File, data []byte) error {
	return munmapFile(data)
}

// mmapFileWritable memory-maps the full contents of f for in-place writing.
func mmapFileWritable(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "skillrt: stat")
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "skillrt: mmap")
	}
	return data, nil
}
