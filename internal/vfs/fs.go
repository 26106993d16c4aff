// Package vfs abstracts the browsable media tree. Two adapters satisfy the
// same contract: a root-confined local directory and an SMB share.
package vfs

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/sublayer/sublayer/pkg/file"
)

// Entry is one row of a directory listing.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"isDirectory"`
	IsVideo     bool   `json:"isVideo"`
	IsSubtitle  bool   `json:"isSubtitle"`
	HasSubtitle bool   `json:"hasSubtitle"`
	Language    string `json:"language,omitempty"`
}

// FileSystem is the capability the orchestrators browse and write through.
// Paths are relative to the adapter's configured root, slash-separated.
type FileSystem interface {
	IsConfigured() bool
	TestConnection() error
	List(dir string) ([]Entry, error)
	ReadSubtitle(subtitlePath string) (string, error)
	// WriteSubtitle writes content next to the video as
	// "{basename}.{langCode}.srt" and returns the created relative path.
	WriteSubtitle(videoPath, content, langCode string) (string, error)
	WriteSubtitleDirect(subtitlePath, content string) error
	// DownloadToTemp copies the whole file to a local temp path the caller
	// must remove.
	DownloadToTemp(remotePath string) (string, error)
	// DownloadHeaderToTemp copies at most maxBytes of the file start.
	DownloadHeaderToTemp(remotePath string, maxBytes int64) (string, error)
	ExtractVideoTitle(videoPath string) string
}

// HeaderBytes is the default header size for container track analysis.
const HeaderBytes int64 = 20 * 1024 * 1024

// languageSuffixPattern extracts the language code from names like
// "movie.he.srt" or "show.eng.srt".
var languageSuffixPattern = regexp.MustCompile(`(?i)\.([a-z]{2,3})\.[a-z]{3}$`)

var languageNames = map[string]string{
	"en": "English", "eng": "English",
	"he": "Hebrew", "heb": "Hebrew",
	"ar": "Arabic", "ara": "Arabic",
	"es": "Spanish", "spa": "Spanish",
	"fr": "French", "fra": "French",
	"de": "German", "deu": "German", "ger": "German",
	"it": "Italian", "ita": "Italian",
	"pt": "Portuguese", "por": "Portuguese",
	"ru": "Russian", "rus": "Russian",
	"zh": "Chinese", "chi": "Chinese", "zho": "Chinese",
	"ja": "Japanese", "jpn": "Japanese",
	"ko": "Korean", "kor": "Korean",
}

// DetectLanguage reads the language suffix out of a subtitle file name.
func DetectLanguage(name string) string {
	m := languageSuffixPattern.FindStringSubmatch(name)
	if m == nil {
		return "Unknown"
	}
	code := strings.ToLower(m[1])
	if full, ok := languageNames[code]; ok {
		return full
	}
	return strings.ToUpper(code)
}

// item is the adapter-neutral shape buildEntries consumes.
type item struct {
	name  string
	isDir bool
}

// buildEntries classifies a directory's raw items into entries: videos are
// matched against sibling subtitles by base name, subtitles get a detected
// language, directories sort first.
func buildEntries(items []item, relDir string) []Entry {
	var entries []Entry
	var subtitleNames []string

	for _, it := range items {
		if !it.isDir && file.IsSubtitle(it.name) {
			subtitleNames = append(subtitleNames, it.name)
		}
	}

	for _, it := range items {
		entry := Entry{
			Name: it.name,
			Path: joinRel(relDir, it.name),
		}
		switch {
		case it.isDir:
			entry.IsDirectory = true
		case file.IsVideo(it.name):
			entry.IsVideo = true
			entry.HasSubtitle = hasMatchingSubtitle(it.name, subtitleNames)
		case file.IsSubtitle(it.name):
			entry.IsSubtitle = true
			entry.Language = DetectLanguage(it.name)
		default:
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDirectory != entries[j].IsDirectory {
			return entries[i].IsDirectory
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries
}

func hasMatchingSubtitle(videoName string, subtitleNames []string) bool {
	base := strings.ToLower(baseName(videoName))
	for _, sub := range subtitleNames {
		if strings.HasPrefix(strings.ToLower(sub), base) {
			return true
		}
	}
	return false
}

func baseName(name string) string {
	if dot := strings.LastIndex(name, "."); dot > 0 {
		return name[:dot]
	}
	return name
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

// titleNoisePatterns strip release-name noise when deriving a display title.
var titleNoisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`\(.*?\)`),
	regexp.MustCompile(`\d{3,4}p`),
	regexp.MustCompile(`(?i)(x264|x265|hevc|aac|bluray|webrip|hdtv|xvid)`),
}

// ExtractTitle turns a video path into a human-readable title.
func ExtractTitle(videoPath string) string {
	name := path.Base(strings.ReplaceAll(videoPath, "\\", "/"))
	title := baseName(name)

	for _, pattern := range titleNoisePatterns {
		title = pattern.ReplaceAllString(title, "")
	}
	title = strings.NewReplacer(".", " ", "_", " ").Replace(title)
	return strings.Join(strings.Fields(title), " ")
}
