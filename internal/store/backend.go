package store

import (
	"errors"
	"os"
)

// Backend is the persistence collaborator: one opaque image blob, read and
// written whole. Implementations own exactly one image.
type Backend interface {
	Load() ([]byte, error)
	Store([]byte) error
}

// FileBackend persists the image to a single file.
type FileBackend struct {
	Path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load() ([]byte, error) {
	return os.ReadFile(b.Path)
}

func (b *FileBackend) Store(img []byte) error {
	return os.WriteFile(b.Path, img, 0o600)
}

// MemBackend keeps the image in memory. Tests use it directly and can force
// write failures through FailWrites.
type MemBackend struct {
	Image      []byte
	FailWrites bool
}

var errWriteFailed = errors.New("store: backend write failed")

func (b *MemBackend) Load() ([]byte, error) {
	if b.Image == nil {
		return nil, os.ErrNotExist
	}
	out := make([]byte, len(b.Image))
	copy(out, b.Image)
	return out, nil
}

func (b *MemBackend) Store(img []byte) error {
	if b.FailWrites {
		return errWriteFailed
	}
	b.Image = make([]byte, len(img))
	copy(b.Image, img)
	return nil
}
