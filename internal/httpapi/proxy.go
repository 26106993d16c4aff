package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sublayer/sublayer/internal/catalog"
	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/service"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/pkg/log"
)

// handleLogin issues an opaque token. The proxy accepts any credentials:
// the real catalog account is configured server-side.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}

	token := uuid.NewString()
	s.tokens.issue(token, body.Username)
	log.Info("Proxy login for user %s", body.Username)

	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"allowed_downloads":    1000,
			"allowed_translations": 1000,
			"level":                "translator",
			"user_id":              1,
			"ext_installed":        false,
			"vip":                  true,
		},
		"base_url": "http://" + r.Host,
		"token":    token,
		"status":   200,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if username := s.tokens.revoke(strings.TrimPrefix(auth, "Bearer ")); username != "" {
			log.Info("Proxy logout for user %s", username)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Logged out successfully",
		"status":  200,
	})
}

// handleSearch proxies the subtitle search. Episode queries may carry the
// ids on the parent show. When the catalog is unreachable or empty the
// local index serves as fallback.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	imdbID := q.Get("imdb_id")
	if imdbID == "" {
		imdbID = q.Get("parent_imdb_id")
	}
	tmdbID := q.Get("tmdb_id")
	if tmdbID == "" {
		tmdbID = q.Get("parent_tmdb_id")
	}
	page, _ := strconv.Atoi(q.Get("page"))

	filters := catalog.SearchFilters{
		Query:     q.Get("query"),
		IMDBID:    imdbID,
		TMDBID:    tmdbID,
		MovieHash: q.Get("moviehash"),
		Page:      page,
	}

	response, err := s.proxy.ProxySearch(r.Context(), filters)
	if err != nil || len(response.Data) == 0 {
		if err != nil {
			log.Warn("Catalog search failed, trying local index: %v", err)
		}
		if fallback := s.indexSearch(r, filters.Query); fallback != nil {
			writeJSON(w, http.StatusOK, fallback)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusOK, emptySearchResponse())
			return
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func emptySearchResponse() *catalog.SearchResponse {
	return &catalog.SearchResponse{PerPage: 20, Page: 1, Data: []catalog.SearchItem{}}
}

// indexSearch maps local index hits onto the catalog search shape. Index
// entries use negative file ids so they never collide with catalog ids.
func (s *Server) indexSearch(r *http.Request, query string) *catalog.SearchResponse {
	if s.index == nil || query == "" {
		return nil
	}

	records, err := s.index.Search(r.Context(), query)
	if err != nil {
		log.Warn("Index search failed: %v", err)
		return nil
	}
	if len(records) == 0 {
		return nil
	}

	code := service.LanguageCode(s.settings.Get().TargetLanguage)
	items := make([]catalog.SearchItem, 0, len(records))
	for _, record := range records {
		fileID := -record.ID
		items = append(items, catalog.SearchItem{
			ID:   strconv.FormatInt(fileID, 10),
			Type: "subtitle",
			Attributes: map[string]any{
				"subtitle_id":        strconv.FormatInt(fileID, 10),
				"language":           code,
				"release":            record.Title + " [Translated]",
				"ai_translated":      true,
				"machine_translated": true,
				"files": []map[string]any{
					{"file_id": fileID, "file_name": record.FileName},
				},
			},
		})
	}

	return &catalog.SearchResponse{
		TotalPages: 1,
		TotalCount: len(items),
		PerPage:    len(items),
		Page:       1,
		Data:       items,
	}
}

// handleDownloadRequest answers the two-step download protocol: the
// returned link points back at this server and triggers the translation
// when fetched.
func (s *Server) handleDownloadRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		FileID    int64  `json:"file_id"`
		SubFormat string `json:"sub_format"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}

	format := "srt"
	if body.SubFormat == "vtt" {
		format = "vtt"
	}

	targetLang := s.settings.Get().TargetLanguage
	message := fmt.Sprintf("%s translation will be generated on download", targetLang)
	if s.proxy.IsCached(body.FileID) {
		message = fmt.Sprintf("%s translation ready (cached)", targetLang)
	}

	resetTime := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, map[string]any{
		"link":           fmt.Sprintf("http://%s/api/v1/download/%d/subtitle.%s", r.Host, body.FileID, format),
		"file_name":      fmt.Sprintf("subtitle_%d_%s.%s", body.FileID, strings.ToLower(targetLang), format),
		"requests":       1,
		"remaining":      999,
		"message":        message,
		"reset_time":     resetTime,
		"reset_time_utc": resetTime,
	})
}

// handleDownloadFile runs the proxy download-translate flow and streams the
// translated subtitle.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// /api/v1/download/{fileId}/{fileName}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/download/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /api/v1/download/{fileId}/{fileName}")
		return
	}
	fileID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	fileName := parts[1]

	format := subtitle.FormatSRT
	if strings.HasSuffix(fileName, ".vtt") {
		format = subtitle.FormatVTT
	}

	var content []byte
	if fileID < 0 {
		content, err = s.downloadIndexed(r, -fileID, format)
	} else {
		content, _, err = s.proxy.ProxyDownloadAndTranslate(r.Context(), fileID, format, fileName)
	}
	if err != nil {
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// downloadIndexed serves a translated local-index subtitle, translating and
// caching on first access.
func (s *Server) downloadIndexed(r *http.Request, id int64, format subtitle.Format) ([]byte, error) {
	if s.index == nil {
		return nil, errIndexDisabled()
	}

	record, err := s.index.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}

	fingerprint := fmt.Sprintf("index_%d", id)
	translated, err := s.proxy.TranslateEmbedded(r.Context(), fingerprint, record.FileName, record.Content, "", 0)
	if err != nil {
		return nil, err
	}

	if format == subtitle.FormatVTT {
		_, cues := subtitle.Parse(translated)
		return []byte(subtitle.GenerateVTT(cues)), nil
	}
	return []byte(translated), nil
}

// handleUpload adds a subtitle to the local index from a multipart form.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.index == nil {
		writeAppError(w, errIndexDisabled())
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	uploaded, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer uploaded.Close()

	content, err := io.ReadAll(uploaded)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	record, err := s.index.Add(r.Context(), header.Filename, string(content))
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Subtitle uploaded successfully",
		"file_id":   -record.ID,
		"file_name": record.FileName,
		"status":    200,
	})
}

func errIndexDisabled() error {
	return errs.New(errs.NotConfigured, "the local subtitle index is not enabled")
}

func (s *Server) handleInfoUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"allowed_downloads":    1000,
			"allowed_translations": 1000,
			"level":                "translator",
			"user_id":              1,
			"ext_installed":        false,
			"vip":                  true,
			"downloads_count":      0,
			"remaining_downloads":  1000,
		},
	})
}

func (s *Server) handleInfoLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	target := s.settings.Get().TargetLanguage
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []map[string]string{
			{"language_code": "en", "language_name": "English"},
			{"language_code": service.LanguageCode(target), "language_name": target},
		},
	})
}

func (s *Server) handleInfoFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []map[string]string{
			{"format_name": "SubRip", "format_extension": "srt"},
			{"format_name": "WebVTT", "format_extension": "vtt"},
		},
	})
}
