package vfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

// Local browses a directory tree confined to a configured root. Every
// operation resolves and checks its path before touching the disk.
type Local struct {
	root func() string
}

// NewLocal builds a local adapter; root is read per call so settings
// changes apply immediately.
func NewLocal(root func() string) *Local {
	return &Local{root: root}
}

func (l *Local) IsConfigured() bool {
	root := l.root()
	if root == "" {
		return false
	}
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

func (l *Local) TestConnection() error {
	root := l.root()
	if root == "" {
		return errs.New(errs.NotConfigured, "local root path is not set")
	}
	info, err := os.Stat(root)
	if err != nil {
		return errs.Wrap(errs.BadInput, "local root path does not exist", err).
			WithContext("root", root)
	}
	if !info.IsDir() {
		return errs.New(errs.BadInput, "local root path is not a directory").
			WithContext("root", root)
	}
	return nil
}

// resolve maps a relative path into the root and rejects escapes before any
// I/O happens.
func (l *Local) resolve(rel string) (string, error) {
	root := l.root()
	if root == "" {
		return "", errs.New(errs.NotConfigured, "local root path is not set")
	}

	rootClean := filepath.Clean(root)
	full := filepath.Clean(filepath.Join(rootClean, filepath.FromSlash(rel)))
	if full != rootClean && !strings.HasPrefix(full, rootClean+string(filepath.Separator)) {
		return "", errs.New(errs.BadInput, "path escapes the configured root").
			WithContext("path", rel)
	}
	return full, nil
}

func (l *Local) List(dir string) ([]Entry, error) {
	full, err := l.resolve(dir)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, errs.Wrap(errs.BadInput, "directory not found", err).
			WithContext("path", dir)
	}

	items := make([]item, 0, len(dirEntries))
	for _, de := range dirEntries {
		items = append(items, item{name: de.Name(), isDir: de.IsDir()})
	}
	return buildEntries(items, strings.Trim(dir, "/")), nil
}

func (l *Local) ReadSubtitle(subtitlePath string) (string, error) {
	full, err := l.resolve(subtitlePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", errs.Wrap(errs.BadInput, "subtitle not found", err).
			WithContext("path", subtitlePath)
	}
	return string(data), nil
}

func (l *Local) WriteSubtitle(videoPath, content, langCode string) (string, error) {
	full, err := l.resolve(videoPath)
	if err != nil {
		return "", err
	}

	subtitleName := baseName(filepath.Base(full)) + "." + langCode + ".srt"
	target := filepath.Join(filepath.Dir(full), subtitleName)

	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return "", errs.Wrap(errs.Internal, "failed to write subtitle", err).
			WithContext("path", target)
	}
	log.Info("Saved subtitle to %s", target)

	rel, err := filepath.Rel(filepath.Clean(l.root()), target)
	if err != nil {
		return subtitleName, nil
	}
	return filepath.ToSlash(rel), nil
}

func (l *Local) WriteSubtitleDirect(subtitlePath, content string) error {
	full, err := l.resolve(subtitlePath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return errs.Wrap(errs.Internal, "failed to write subtitle", err).
			WithContext("path", subtitlePath)
	}
	log.Info("Saved subtitle directly to %s", full)
	return nil
}

func (l *Local) DownloadToTemp(remotePath string) (string, error) {
	return l.copyToTemp(remotePath, "video_", -1)
}

func (l *Local) DownloadHeaderToTemp(remotePath string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = HeaderBytes
	}
	return l.copyToTemp(remotePath, "video_header_", maxBytes)
}

// copyToTemp copies up to maxBytes (whole file when negative) into a fresh
// temp file. The demuxer wants a plain deletable path even for local files.
func (l *Local) copyToTemp(remotePath, prefix string, maxBytes int64) (string, error) {
	full, err := l.resolve(remotePath)
	if err != nil {
		return "", err
	}

	src, err := os.Open(full)
	if err != nil {
		return "", errs.Wrap(errs.BadInput, "video not found", err).
			WithContext("path", remotePath)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", prefix+"*"+filepath.Ext(full))
	if err != nil {
		return "", errs.Wrap(errs.Internal, "failed to create temp file", err)
	}
	defer tmp.Close()

	var reader io.Reader = src
	if maxBytes >= 0 {
		reader = io.LimitReader(src, maxBytes)
	}
	written, err := io.Copy(tmp, reader)
	if err != nil {
		os.Remove(tmp.Name())
		return "", errs.Wrap(errs.Internal, "failed to copy video to temp file", err).
			WithContext("path", remotePath)
	}

	log.Debug("Copied %d bytes of %s to %s", written, remotePath, tmp.Name())
	return tmp.Name(), nil
}

func (l *Local) ExtractVideoTitle(videoPath string) string {
	return ExtractTitle(videoPath)
}
