package archive

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NewWriter wraps w with the given compression. Closing the returned writer
// flushes the compressor but does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopCloser{w}, nil
	case XZ:
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		return xzw, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %q", c)
	}
}

// WriteCompressed streams fn's output through the given compression into w.
func WriteCompressed(w io.Writer, c Compression, fn func(io.Writer) error) error {
	cw, err := NewWriter(w, c)
	if err != nil {
		return err
	}
	if err := fn(cw); err != nil {
		cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("close %s stream: %w", c, err)
	}
	return nil
}
