package document

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"bundlewatch/internal/fingerprint"
)

// Source reports the script URLs of the currently loaded document.
type Source interface {
	ScriptSources(ctx context.Context) ([]string, error)
}

// Fetcher retrieves script URLs from somewhere else, typically the origin.
type Fetcher interface {
	ScriptSources(ctx context.Context) ([]string, error)
}

// Fingerprint returns the bundle fingerprint of src.
func Fingerprint(ctx context.Context, src Source) (string, error) {
	if src == nil {
		return "", nil
	}
	sources, err := src.ScriptSources(ctx)
	if err != nil {
		return "", err
	}
	return fingerprint.Extract(sources), nil
}

// File reads the document from an HTML file on every call.
type File struct {
	Path string
}

// NewFile returns a Source reading path.
func NewFile(path string) *File {
	return &File{Path: strings.TrimSpace(path)}
}

func (f *File) ScriptSources(context.Context) ([]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer file.Close()
	sources, err := fingerprint.ScriptSources(file)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", f.Path, err)
	}
	return sources, nil
}

// Snapshot captures script URLs from a Fetcher once and serves them until
// Reset. It stands in for a page that was loaded from the origin when the
// process started.
type Snapshot struct {
	fetcher Fetcher

	mu       sync.Mutex
	captured bool
	sources  []string
}

// NewSnapshot returns a Snapshot over fetcher.
func NewSnapshot(fetcher Fetcher) *Snapshot {
	return &Snapshot{fetcher: fetcher}
}

func (s *Snapshot) ScriptSources(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captured {
		return append([]string(nil), s.sources...), nil
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("snapshot: no fetcher")
	}
	sources, err := s.fetcher.ScriptSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	s.sources = sources
	s.captured = true
	return append([]string(nil), sources...), nil
}

// Reset drops the captured document so the next call fetches again.
func (s *Snapshot) Reset() {
	s.mu.Lock()
	s.captured = false
	s.sources = nil
	s.mu.Unlock()
}

// Reload implements Reloader: a reloaded page is a fresh origin snapshot.
func (s *Snapshot) Reload(context.Context) error {
	s.Reset()
	return nil
}

// Static is a fixed list of script URLs.
type Static []string

func (s Static) ScriptSources(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}
