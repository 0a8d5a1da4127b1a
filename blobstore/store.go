package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is a flat namespace of immutable blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
	// ReadRange returns a reader over length bytes starting at off. The
	// range is clipped to the blob.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll reads a whole blob. The reader returned by wrap, if non-nil,
// sits between the blob and the caller (for throttling).
func ReadAll(ctx context.Context, s Store, name string, wrap func(io.Reader) io.Reader) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	if m, ok := b.(Mappable); ok && wrap == nil {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var r io.Reader = rc
	if wrap != nil {
		r = wrap(rc)
	}
	data := make([]byte, b.Size())
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	return data, nil
}

// clip bounds [off, off+length) to a blob of the given size.
func clip(off, length, size int64) (int64, int64) {
	if off < 0 {
		off = 0
	}
	if off > size {
		off = size
	}
	end := off + length
	if length < 0 || end > size {
		end = size
	}
	return off, end
}
