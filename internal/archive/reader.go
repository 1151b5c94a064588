// Package archive provides transparent handling of compressed verse tables
// and corpus artifacts. It supports .xz and .gz single-file compression.
package archive

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/versealign/internal/validation"
)

// Compression identifies a single-file compression wrapper.
type Compression string

const (
	None Compression = ""
	XZ   Compression = "xz"
	Gzip Compression = "gzip"
)

// Ext returns the file extension of the compression, including the dot.
func (c Compression) Ext() string {
	switch c {
	case XZ:
		return ".xz"
	case Gzip:
		return ".gz"
	default:
		return ""
	}
}

// Split separates a trailing compression extension from a file name:
// "Bible_English.tsv.xz" yields ("Bible_English.tsv", XZ).
func Split(name string) (string, Compression) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xz":
		return name[:len(name)-3], XZ
	case ".gz":
		return name[:len(name)-3], Gzip
	default:
		return name, None
	}
}

// Reader wraps a file with automatic decompression handling.
type Reader struct {
	io.Reader
	file         *os.File
	decompressor io.Closer
	compression  Compression
}

// Open opens path for reading. Compression is chosen by extension and
// confirmed by magic bytes, so a mislabelled file is an error rather than
// garbage input.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	head, err := br.Peek(6)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	magic := validation.DetectMagic(head)

	_, comp := Split(path)
	switch {
	case comp == XZ && magic != validation.FileTypeXZ,
		comp == Gzip && magic != validation.FileTypeGzip:
		f.Close()
		return nil, fmt.Errorf("%s: extension suggests %s but content is %s", path, comp, magic)
	case comp == None && magic == validation.FileTypeXZ:
		comp = XZ
	case comp == None && magic == validation.FileTypeGzip:
		comp = Gzip
	}

	var reader io.Reader = br
	var decompressor io.Closer

	switch comp {
	case XZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case Gzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	}

	return &Reader{
		Reader:       reader,
		file:         f,
		decompressor: decompressor,
		compression:  comp,
	}, nil
}

// Compression reports the detected compression of the file.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Close closes the reader and any underlying decompressor.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// ReadFile reads and decompresses a whole file.
func ReadFile(path string) ([]byte, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
