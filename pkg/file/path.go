package file

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ReplaceExt swaps the extension of path for ext, appending ext when the
// file name has none.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	lastDot := strings.LastIndex(filename, ".")

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if lastDot <= 0 {
		return filepath.Join(dir, filename+ext)
	}

	return filepath.Join(dir, filename[:lastDot]+ext)
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName reduces a file name to a fingerprint-safe token.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeNameChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

var videoExts = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
}

var subtitleExts = map[string]bool{
	".srt": true,
	".vtt": true,
	".ass": true,
	".ssa": true,
	".sub": true,
}

// IsVideo reports whether the file name carries a video container extension.
func IsVideo(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// IsSubtitle reports whether the file name carries a subtitle extension.
func IsSubtitle(name string) bool {
	return subtitleExts[strings.ToLower(filepath.Ext(name))]
}

// Title derives a human-readable title from a media file name: extension
// stripped, separators collapsed to spaces.
func Title(name string) string {
	title := name
	if ext := filepath.Ext(title); ext != "" {
		title = strings.TrimSuffix(title, ext)
	}
	title = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(title)
	return strings.Join(strings.Fields(title), " ")
}
