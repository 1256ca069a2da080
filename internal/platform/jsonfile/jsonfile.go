// Package jsonfile persists a single JSON document on disk with atomic writes.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"

	"dailysender/internal/shared"
)

// Result is what Load found on disk.
type Result[T any] struct {
	Value  T
	Exists bool
	// Digest identifies the raw file content; zero when the file is missing.
	Digest uint64
}

// File is a JSON document of type T stored at a fixed path.
// File itself is not synchronized; owners serialize access.
type File[T any] struct {
	path string
}

// New returns a File bound to path. Nothing is read or created yet.
func New[T any](path string) *File[T] {
	return &File[T]{path: path}
}

// Path returns the backing file path.
func (f *File[T]) Path() string { return f.path }

// Load reads and decodes the file. A missing file is not an error: the result
// has Exists == false. Read and decode failures are marked KindPersistence and
// still report Exists and Digest so callers can log and fall back.
func (f *File[T]) Load() (Result[T], error) {
	var res Result[T]

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		return res, shared.MarkKind(fmt.Errorf("read %s: %w", f.path, err), shared.KindPersistence)
	}
	res.Exists = true
	res.Digest = digest(data)

	if len(bytes.TrimSpace(data)) == 0 {
		return res, shared.MarkKind(fmt.Errorf("decode %s: empty file", f.path), shared.KindPersistence)
	}
	if err := json.Unmarshal(data, &res.Value); err != nil {
		return res, shared.MarkKind(fmt.Errorf("decode %s: %w", f.path, err), shared.KindPersistence)
	}
	return res, nil
}

// Save encodes v and replaces the file atomically (temp file + rename in the
// same directory). It returns the digest of the written content.
func (f *File[T]) Save(v T) (uint64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 0, shared.MarkKind(fmt.Errorf("encode %s: %w", f.path, err), shared.KindPersistence)
	}
	data := buf.Bytes()

	if err := writeAtomic(f.path, data); err != nil {
		return 0, shared.MarkKind(err, shared.KindPersistence)
	}
	return digest(data), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func digest(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
