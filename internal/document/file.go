package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bruwbird/codex/internal/atomicfile"
)

var ErrNotRegularFile = errors.New("not a regular file")

// File is a Document backed by a file on disk. Every read goes to disk so an
// insertion is validated against the current contents.
type File struct {
	mu   sync.Mutex
	path string
}

func OpenFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, abs)
	}
	return &File{path: abs}, nil
}

func (f *File) ID() string {
	return f.path
}

func (f *File) Name() string {
	return filepath.Base(f.path)
}

func (f *File) Text() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked()
}

func (f *File) TextIn(r Range) (string, error) {
	text, err := f.Text()
	if err != nil {
		return "", err
	}
	return sliceRange(text, r)
}

func (f *File) End() (Position, error) {
	text, err := f.Text()
	if err != nil {
		return Position{}, err
	}
	return endOf(text), nil
}

func (f *File) Insert(at Position, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.readLocked()
	if err != nil {
		return err
	}
	updated, err := insertAt(current, at, text)
	if err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if info, statErr := os.Stat(f.path); statErr == nil {
		perm = info.Mode().Perm()
	}
	return atomicfile.Write(f.path, []byte(updated), perm)
}

func (f *File) readLocked() (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Buffer is an in-memory Document.
type Buffer struct {
	mu   sync.Mutex
	id   string
	name string
	text string
}

func NewBuffer(id, text string) *Buffer {
	return &Buffer{id: id, name: filepath.Base(id), text: text}
}

func (b *Buffer) ID() string   { return b.id }
func (b *Buffer) Name() string { return b.name }

func (b *Buffer) Text() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, nil
}

func (b *Buffer) TextIn(r Range) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sliceRange(b.text, r)
}

func (b *Buffer) End() (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return endOf(b.text), nil
}

func (b *Buffer) Insert(at Position, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	updated, err := insertAt(b.text, at, text)
	if err != nil {
		return err
	}
	b.text = updated
	return nil
}

var (
	_ Document = (*File)(nil)
	_ Document = (*Buffer)(nil)
)
