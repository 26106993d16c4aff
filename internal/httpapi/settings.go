package httpapi

import (
	"net/http"
	"strings"

	"github.com/sublayer/sublayer/internal/llm"
	"github.com/sublayer/sublayer/pkg/log"
)

// handleSettings reads and updates the application settings. API keys are
// masked on the way out; a masked or empty value on the way in keeps the
// stored secret.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeSettings(w)
	case http.MethodPost:
		s.updateSettings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) writeSettings(w http.ResponseWriter) {
	settings := s.settings.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"openSubtitlesApiKey":      maskKey(settings.OpenSubtitlesAPIKey),
		"openSubtitlesUsername":    settings.OpenSubtitlesUsername,
		"openSubtitlesPasswordSet": settings.OpenSubtitlesPassword != "",

		"openAiApiKey": maskKey(settings.OpenAIAPIKey),

		"modelProvider": settings.ModelProvider,
		"ollamaModel":   settings.OllamaModel,
		"openAiModel":   settings.OpenAIModel,
		"ollamaBaseUrl": settings.OllamaBaseURL,

		"targetLanguage":       settings.TargetLanguage,
		"skipHearingImpaired":  settings.SkipHearingImpaired,
		"translationBatchSize": settings.TranslationBatchSize,

		"smbHost":       settings.SMBHost,
		"smbShare":      settings.SMBShare,
		"smbUsername":   settings.SMBUsername,
		"smbDomain":     settings.SMBDomain,
		"smbConfigured": settings.SMBHost != "" && settings.SMBShare != "",

		"browseMode":    settings.BrowseMode,
		"localRootPath": settings.LocalRootPath,
	})
}

// updateSettings applies a partial update: only the keys present in the
// request change, and masked key values ("ab***cd") are ignored so the form
// can echo the GET payload back unchanged.
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		writeAppError(w, err)
		return
	}

	updated := s.settings.Get()

	setKey := func(key string, target *string) {
		value, ok := payload[key].(string)
		if !ok || strings.Contains(value, "***") {
			return
		}
		*target = value
	}
	setString := func(key string, target *string) {
		if value, ok := payload[key].(string); ok {
			*target = value
		}
	}
	setSecret := func(key string, target *string) {
		if value, ok := payload[key].(string); ok && value != "" {
			*target = value
		}
	}
	setBool := func(key string, target *bool) {
		if value, ok := payload[key].(bool); ok {
			*target = value
		}
	}
	setInt := func(key string, target *int) {
		if value, ok := payload[key].(float64); ok {
			*target = int(value)
		}
	}

	setKey("openSubtitlesApiKey", &updated.OpenSubtitlesAPIKey)
	setString("openSubtitlesUsername", &updated.OpenSubtitlesUsername)
	setSecret("openSubtitlesPassword", &updated.OpenSubtitlesPassword)
	setKey("openAiApiKey", &updated.OpenAIAPIKey)

	setString("modelProvider", &updated.ModelProvider)
	setString("ollamaModel", &updated.OllamaModel)
	setString("openAiModel", &updated.OpenAIModel)
	setString("ollamaBaseUrl", &updated.OllamaBaseURL)

	setString("targetLanguage", &updated.TargetLanguage)
	setBool("skipHearingImpaired", &updated.SkipHearingImpaired)
	setInt("translationBatchSize", &updated.TranslationBatchSize)

	setString("smbHost", &updated.SMBHost)
	setString("smbShare", &updated.SMBShare)
	setString("smbUsername", &updated.SMBUsername)
	setSecret("smbPassword", &updated.SMBPassword)
	setString("smbDomain", &updated.SMBDomain)

	setString("browseMode", &updated.BrowseMode)
	setString("localRootPath", &updated.LocalRootPath)

	if err := s.settings.Update(updated); err != nil {
		writeAppError(w, err)
		return
	}

	log.Info("Settings updated")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Settings saved",
	})
}

// handleOllamaModels lists the models installed on the configured Ollama
// server. An unreachable server is reported, not an error status.
func (s *Server) handleOllamaModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.ollama == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"models":    []llm.ModelInfo{},
			"available": false,
			"message":   "Ollama management is not configured",
		})
		return
	}

	models, err := s.ollama.ListModels(r.Context())
	if err != nil {
		log.Warn("Ollama model list failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"models":    []llm.ModelInfo{},
			"available": false,
			"message":   err.Error(),
		})
		return
	}
	if models == nil {
		models = []llm.ModelInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models":    models,
		"available": true,
	})
}

func (s *Server) handleOllamaPull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.ollama == nil {
		writeError(w, http.StatusBadRequest, "Ollama management is not configured")
		return
	}

	var body struct {
		Model string `json:"model"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAppError(w, err)
		return
	}

	if err := s.ollama.StartPull(body.Model); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Model pull started: " + body.Model,
	})
}

func (s *Server) handleOllamaPullStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.ollama == nil {
		writeJSON(w, http.StatusOK, llm.PullStatus{State: "idle"})
		return
	}
	writeJSON(w, http.StatusOK, s.ollama.PullState())
}
