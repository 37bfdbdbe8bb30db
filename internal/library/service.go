// Package library lists saved downloads across the four fixed storage
// categories.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// Categories are the fixed subdirectories of the storage base directory.
var Categories = []string{"video-with-audio", "video-only", "audio-only", "captions-only"}

// Entry is one saved file in a category.
type Entry struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
}

// Service provides read-only listings of the download directories.
type Service struct {
	baseDir string
	logger  zerolog.Logger
}

// NewService creates a library service rooted at baseDir and ensures the
// category directories exist.
func NewService(baseDir string, logger zerolog.Logger) (*Service, error) {
	for _, c := range Categories {
		if err := os.MkdirAll(filepath.Join(baseDir, c), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create category directory %s: %w", c, err)
		}
	}
	return &Service{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "library").Logger(),
	}, nil
}

// ValidCategory reports whether category names one of the fixed storage
// categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// List returns the files saved under one category, sorted by name.
func (s *Service) List(category string) ([]Entry, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	dir := filepath.Join(s.baseDir, category)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read category directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Name:         e.Name(),
			RelativePath: filepath.ToSlash(filepath.Join(category, e.Name())),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// BaseDir returns the storage root.
func (s *Service) BaseDir() string { return s.baseDir }
