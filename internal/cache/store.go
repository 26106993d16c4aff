// Package cache persists translated subtitles on disk, one directory per
// fingerprint. Existence of a translated file is the cache-hit signal, so
// every write goes through a temp-file rename and never leaves a partial
// artifact behind.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

const (
	originalFile = "original.srt"
	metadataFile = "metadata.json"
)

// Metadata describes the source of a cache entry.
type Metadata struct {
	FileName   string `json:"fileName"`
	FileID     int64  `json:"fileId,omitempty"`
	VideoPath  string `json:"videoPath,omitempty"`
	TrackIndex int    `json:"trackIndex,omitempty"`
}

// Entry is a cache directory as seen by List.
type Entry struct {
	Fingerprint string   `json:"fingerprint"`
	Metadata    Metadata `json:"metadata"`
	// Languages holds the language codes with a finished translation.
	// Empty means only the original is present (translation in progress).
	Languages []string `json:"languages"`
	SizeBytes int64    `json:"sizeBytes"`
}

// Store is a content-addressed subtitle cache rooted at a single directory.
type Store struct {
	root string
}

// NewStore creates the cache root if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create cache directory", err).
			WithContext("root", root)
	}
	return &Store{root: root}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) entryDir(fingerprint string) string {
	return filepath.Join(s.root, fingerprint)
}

func translatedFile(lang string) string {
	return fmt.Sprintf("translated_%s.srt", lang)
}

// Has reports whether a finished translation exists for the fingerprint
// and language.
func (s *Store) Has(fingerprint, lang string) bool {
	info, err := os.Stat(filepath.Join(s.entryDir(fingerprint), translatedFile(lang)))
	return err == nil && !info.IsDir()
}

// LoadTranslated returns the translated SRT content.
func (s *Store) LoadTranslated(fingerprint, lang string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.entryDir(fingerprint), translatedFile(lang)))
	if err != nil {
		return "", errs.Wrap(errs.BadInput, "no cached translation", err).
			WithContext("fingerprint", fingerprint).
			WithContext("language", lang)
	}
	return string(data), nil
}

// LoadOriginal returns the cached source subtitle, if present.
func (s *Store) LoadOriginal(fingerprint string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.entryDir(fingerprint), originalFile))
	if err != nil {
		return "", errs.Wrap(errs.BadInput, "no cached original", err).
			WithContext("fingerprint", fingerprint)
	}
	return string(data), nil
}

// StoreOriginal persists the fetched source subtitle and metadata before
// translation starts, so the entry shows up as in-progress in List.
func (s *Store) StoreOriginal(fingerprint, original string, meta Metadata) error {
	dir := s.entryDir(fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.Internal, "failed to create cache entry", err).
			WithContext("fingerprint", fingerprint)
	}

	if err := writeAtomic(filepath.Join(dir, originalFile), []byte(original)); err != nil {
		return err
	}
	return s.writeMetadata(dir, meta)
}

// StoreTranslated persists a finished translation for the language.
func (s *Store) StoreTranslated(fingerprint, lang, translated string) error {
	dir := s.entryDir(fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.Internal, "failed to create cache entry", err).
			WithContext("fingerprint", fingerprint)
	}
	return writeAtomic(filepath.Join(dir, translatedFile(lang)), []byte(translated))
}

func (s *Store) writeMetadata(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to encode cache metadata", err)
	}
	return writeAtomic(filepath.Join(dir, metadataFile), data)
}

// writeAtomic writes through a temp file and rename so readers never see a
// partial file.
func writeAtomic(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.Internal, "failed to write cache file", err).
			WithContext("path", path)
	}
	return nil
}

// List enumerates all cache entries, including those with only an original
// (translation still in progress). Sorted by fingerprint for stable output.
func (s *Store) List() ([]Entry, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to read cache directory", err).
			WithContext("root", s.root)
	}

	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		entry, err := s.readEntry(d.Name())
		if err != nil {
			log.Warn("Skipping unreadable cache entry %s: %v", d.Name(), err)
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Fingerprint < entries[j].Fingerprint
	})
	return entries, nil
}

func (s *Store) readEntry(fingerprint string) (Entry, error) {
	dir := s.entryDir(fingerprint)
	files, err := os.ReadDir(dir)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Fingerprint: fingerprint}

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if info, err := f.Info(); err == nil {
			entry.SizeBytes += info.Size()
		}

		name := f.Name()
		switch {
		case name == metadataFile:
			if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
				_ = json.Unmarshal(data, &entry.Metadata)
			}
		case strings.HasPrefix(name, "translated_") && strings.HasSuffix(name, ".srt"):
			lang := strings.TrimSuffix(strings.TrimPrefix(name, "translated_"), ".srt")
			entry.Languages = append(entry.Languages, lang)
		}
	}

	sort.Strings(entry.Languages)
	return entry, nil
}

// Delete removes a cache entry recursively.
func (s *Store) Delete(fingerprint string) error {
	dir := s.entryDir(fingerprint)
	if _, err := os.Stat(dir); err != nil {
		return errs.Wrap(errs.BadInput, "cache entry not found", err).
			WithContext("fingerprint", fingerprint)
	}
	if err := os.RemoveAll(dir); err != nil {
		return errs.Wrap(errs.Internal, "failed to delete cache entry", err).
			WithContext("fingerprint", fingerprint)
	}
	log.Info("Deleted cache entry %s", fingerprint)
	return nil
}

// Clear removes every cache entry but keeps the root directory.
func (s *Store) Clear() error {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to read cache directory", err).
			WithContext("root", s.root)
	}

	for _, d := range dirs {
		if err := os.RemoveAll(filepath.Join(s.root, d.Name())); err != nil {
			return errs.Wrap(errs.Internal, "failed to clear cache", err).
				WithContext("entry", d.Name())
		}
	}
	log.Info("Cleared subtitle cache (%d entries)", len(dirs))
	return nil
}
