package logio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrBodyNotFound is returned when a script body was never written.
var ErrBodyNotFound = errors.New("script body not found")

// BodyStore holds script sources outside the token stream, keyed by a
// counter that increases with every script the recording loads.
type BodyStore interface {
	WriteBody(counter uint64, uri, source string) error
	ReadBody(counter uint64, uri string) (string, error)
}

// DirBodyStore keeps one file per script body in Dir.
type DirBodyStore struct {
	Dir string
}

const maxNameStem = 48

// BodyFileName derives the side-file name for a body. URIs are normalised
// to NFC first so that equivalent spellings map to the same file.
func BodyFileName(counter uint64, uri string) string {
	uri = norm.NFC.String(uri)
	if i := strings.LastIndexAny(uri, `/\`); i >= 0 {
		uri = uri[i+1:]
	}
	var b strings.Builder
	for _, r := range uri {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxNameStem {
			break
		}
	}
	stem := strings.Trim(b.String(), "._")
	if stem == "" {
		stem = "script"
	}
	return fmt.Sprintf("body_%d_%s.src", counter, stem)
}

func (d DirBodyStore) WriteBody(counter uint64, uri, source string) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("write body %d: %w", counter, err)
	}
	path := filepath.Join(d.Dir, BodyFileName(counter, uri))
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return fmt.Errorf("write body %d: %w", counter, err)
	}
	return nil
}

func (d DirBodyStore) ReadBody(counter uint64, uri string) (string, error) {
	data, err := os.ReadFile(filepath.Join(d.Dir, BodyFileName(counter, uri)))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read body %d (%s): %w", counter, uri, ErrBodyNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read body %d: %w", counter, err)
	}
	return string(data), nil
}

// MemoryBodyStore keeps bodies in a map.
type MemoryBodyStore map[uint64]string

func (m MemoryBodyStore) WriteBody(counter uint64, _ string, source string) error {
	m[counter] = source
	return nil
}

func (m MemoryBodyStore) ReadBody(counter uint64, uri string) (string, error) {
	s, ok := m[counter]
	if !ok {
		return "", fmt.Errorf("read body %d (%s): %w", counter, uri, ErrBodyNotFound)
	}
	return s, nil
}
