package dump

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Open opens a dump file for reading, transparently decompressing .gz and
// .zst archives.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch filepath.Ext(path) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("dump: gzip reader for %s: %w", path, err)
		}
		return &compressedReader{Reader: zr, close: func() error {
			cerr := zr.Close()
			if err := f.Close(); err != nil {
				return err
			}
			return cerr
		}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("dump: zstd reader for %s: %w", path, err)
		}
		return &compressedReader{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	default:
		return f, nil
	}
}

type compressedReader struct {
	io.Reader
	close func() error
}

func (c *compressedReader) Close() error { return c.close() }
