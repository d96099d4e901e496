//go:build !unix

package stream

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// mmapFile falls back to a plain read on platforms without a mapping
// syscall wired up (spec §1 treats the mapping layer as an external
// collaborator; this keeps the module buildable everywhere while the unix
// build uses a true mapping).
func mmapFile(f *os.File) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "skillrt: read")
	}
	return data, nil
}

func munmapFile([]byte) error { return nil }

// mmapFileWritable falls back to reading the whole file into memory; writes
// through the returned slice on this build are flushed back explicitly by
// fileStream.Close (see the writable branch there), since there is no real
// mapping to keep them in sync with the file automatically.
func mmapFileWritable(f *os.File) ([]byte, error) { return mmapFile(f) }

// writeBackAndUnmap writes the in-memory buffer back to f at offset 0,
// since this build has no real mapping to keep the file in sync.
func writeBackAndUnmap(f *os.File, data []byte) error {
	if _, err := f.WriteAt(data, 0); err != nil {
		return errors.Wrap(err, "skillrt: write back")
	}
	return nil
}
