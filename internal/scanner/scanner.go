// Package scanner resolves an import folder into the ordered list of frame
// files a sequence will load. It never reads pixel data.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"imageseq/internal/codec"
)

var (
	// ErrFolderNotFound reports a missing or non-directory import source.
	ErrFolderNotFound = errors.New("import folder not found")
	// ErrNoMatches reports a folder without any allow-listed frame files.
	ErrNoMatches = errors.New("no image files found")
)

// Options controls which directory entries become frames.
type Options struct {
	// Extensions is the allow-list; empty means codec.Extensions().
	Extensions []string
	// ExtraExtension is appended to the allow-list when set.
	ExtraExtension string
	// MaxFrames caps the result when positive.
	MaxFrames int
	// Pattern is an optional doublestar glob matched against file names.
	Pattern string
}

// Entry is one frame candidate.
type Entry struct {
	// Name is the file name without extension; it becomes the frame identifier.
	Name string
	// Ext is the original extension without the dot, case preserved.
	Ext string
}

// FileName returns Name.Ext.
func (e Entry) FileName() string {
	if e.Ext == "" {
		return e.Name
	}
	return e.Name + "." + e.Ext
}

// Path joins the entry onto folder.
func (e Entry) Path(folder string) string {
	return filepath.Join(folder, e.FileName())
}

// Scanner lists frame files for a folder.
type Scanner struct {
	allowed map[string]struct{}
	max     int
	pattern string
}

// New validates opts and builds a Scanner.
func New(opts Options) (*Scanner, error) {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = codec.Extensions()
	}
	allowed := make(map[string]struct{}, len(exts)+1)
	for _, ext := range exts {
		if norm := codec.NormalizeExt(ext); norm != "" {
			allowed[norm] = struct{}{}
		}
	}
	if extra := codec.NormalizeExt(opts.ExtraExtension); extra != "" {
		allowed[extra] = struct{}{}
	}
	pattern := strings.TrimSpace(opts.Pattern)
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid name pattern %q", pattern)
	}
	maxFrames := opts.MaxFrames
	if maxFrames < 0 {
		maxFrames = 0
	}
	return &Scanner{allowed: allowed, max: maxFrames, pattern: pattern}, nil
}

// Scan returns the matching entries of folder sorted by file name and capped
// at MaxFrames.
func (s *Scanner) Scan(folder string) ([]Entry, error) {
	info, err := os.Stat(folder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", folder, ErrFolderNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", folder, ErrFolderNotFound)
	}

	dirEntries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", folder, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !s.matches(name) {
			continue
		}
		ext := filepath.Ext(name)
		entries = append(entries, Entry{
			Name: strings.TrimSuffix(name, ext),
			Ext:  strings.TrimPrefix(ext, "."),
		})
	}

	// ReadDir already sorts by name; the explicit pass keeps ordering a
	// property of this package rather than of the os implementation.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FileName() < entries[j].FileName()
	})

	if s.max > 0 && len(entries) > s.max {
		entries = entries[:s.max]
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", folder, ErrNoMatches)
	}
	return entries, nil
}

func (s *Scanner) matches(name string) bool {
	ext := codec.NormalizeExt(filepath.Ext(name))
	if _, ok := s.allowed[ext]; !ok {
		return false
	}
	if s.pattern == "" {
		return true
	}
	ok, err := doublestar.Match(s.pattern, name)
	return err == nil && ok
}
