// Package cas computes content hashes for written corpus artifacts and
// provides the atomic write used for every output file.
// Artifacts are identified by SHA-256; BLAKE3 is recorded alongside for
// fast verification.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// HashResult contains both SHA-256 and BLAKE3 hashes for an artifact.
type HashResult struct {
	SHA256    string `json:"sha256"`
	BLAKE3    string `json:"blake3"`
	SizeBytes int64  `json:"size_bytes"`
}

// Hash returns the SHA-256 hash of data as lowercase hex.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3 hash of the given data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashReader hashes everything read from r with both algorithms in one pass.
func HashReader(r io.Reader) (*HashResult, error) {
	s := sha256.New()
	b := blake3.New()
	n, err := io.Copy(io.MultiWriter(s, b), r)
	if err != nil {
		return nil, fmt.Errorf("failed to hash content: %w", err)
	}
	return &HashResult{
		SHA256:    hex.EncodeToString(s.Sum(nil)),
		BLAKE3:    hex.EncodeToString(b.Sum(nil)),
		SizeBytes: n,
	}, nil
}

// HashFile hashes the file at path.
func HashFile(path string) (*HashResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return HashReader(f)
}

// WriteAtomic writes a file by streaming into a temp file in the same
// directory and renaming it into place. If write fails, nothing is left at
// path.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	// CreateTemp uses 0600; artifacts are shared outputs.
	if err := tempFile.Chmod(0644); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := write(tempFile); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return err
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// TempPath returns a path next to path suitable for formats whose writers
// need a file name rather than a stream (SQLite, XLSX). The caller renames
// it into place with Commit or removes it.
func TempPath(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	f.Chmod(0644)
	f.Close()
	return name, nil
}

// Commit renames a temp file produced by TempPath into place.
func Commit(tempPath, path string) error {
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
