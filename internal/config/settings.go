package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

const (
	settingsFile     = "app-settings.json"
	lastLanguageFile = "last-language.json"
)

// BrowseMode values.
const (
	BrowseModeLocal = "local"
	BrowseModeSMB   = "smb"
)

// Settings is the mutable application configuration, persisted as a single
// JSON document. Lifecycle: load on start, save on every mutation.
type Settings struct {
	OpenSubtitlesAPIKey   string `json:"openSubtitlesApiKey"`
	OpenSubtitlesUsername string `json:"openSubtitlesUsername"`
	OpenSubtitlesPassword string `json:"openSubtitlesPassword"`

	OpenAIAPIKey string `json:"openAiApiKey"`

	// ModelProvider is "ollama" or "openai".
	ModelProvider string `json:"modelProvider"`
	OllamaModel   string `json:"ollamaModel"`
	OpenAIModel   string `json:"openAiModel"`
	OllamaBaseURL string `json:"ollamaBaseUrl"`

	TargetLanguage      string `json:"targetLanguage"`
	SkipHearingImpaired bool   `json:"skipHearingImpaired"`
	// TranslationBatchSize overrides the provider auto-tune when positive.
	TranslationBatchSize int `json:"translationBatchSize"`

	SMBHost     string `json:"smbHost"`
	SMBShare    string `json:"smbShare"`
	SMBUsername string `json:"smbUsername"`
	SMBPassword string `json:"smbPassword"`
	SMBDomain   string `json:"smbDomain"`

	// BrowseMode is "local" or "smb".
	BrowseMode    string `json:"browseMode"`
	LocalRootPath string `json:"localRootPath"`
}

// DefaultSettings returns the out-of-the-box configuration.
func DefaultSettings() Settings {
	return Settings{
		ModelProvider:  "ollama",
		OllamaModel:    "translategema2:4b",
		OpenAIModel:    "gpt-4o-mini",
		OllamaBaseURL:  "http://localhost:11434",
		TargetLanguage: "Hebrew",
		BrowseMode:     BrowseModeLocal,
	}
}

// secretFields are preserved on update when the incoming value is empty, so
// a settings form can omit passwords without wiping them.
func (s *Settings) mergeSecrets(previous Settings) {
	if s.OpenSubtitlesPassword == "" {
		s.OpenSubtitlesPassword = previous.OpenSubtitlesPassword
	}
	if s.OpenSubtitlesAPIKey == "" {
		s.OpenSubtitlesAPIKey = previous.OpenSubtitlesAPIKey
	}
	if s.OpenAIAPIKey == "" {
		s.OpenAIAPIKey = previous.OpenAIAPIKey
	}
	if s.SMBPassword == "" {
		s.SMBPassword = previous.SMBPassword
	}
}

// SettingsStore owns the settings document and its file.
type SettingsStore struct {
	dir string

	mu       sync.Mutex
	settings Settings
}

// NewSettingsStore loads settings from dir, falling back to defaults when
// the file is missing or unreadable.
func NewSettingsStore(dir string) (*SettingsStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create settings directory", err).
			WithContext("dir", dir)
	}

	store := &SettingsStore{dir: dir, settings: DefaultSettings()}

	path := filepath.Join(dir, settingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Could not read settings file %s: %v, using defaults", path, err)
		}
		return store, nil
	}

	loaded := DefaultSettings()
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warn("Settings file %s is corrupt: %v, using defaults", path, err)
		return store, nil
	}
	store.settings = loaded
	log.Info("Loaded settings from %s", path)
	return store, nil
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update replaces the settings, preserving stored secrets when the incoming
// value leaves them empty, and persists the result.
func (s *SettingsStore) Update(updated Settings) error {
	s.mu.Lock()
	updated.mergeSecrets(s.settings)
	s.settings = updated
	snapshot := s.settings
	s.mu.Unlock()

	return s.save(snapshot)
}

// SetTargetLanguage mutates just the target language and persists.
func (s *SettingsStore) SetTargetLanguage(language string) error {
	s.mu.Lock()
	s.settings.TargetLanguage = language
	snapshot := s.settings
	s.mu.Unlock()

	if err := s.save(snapshot); err != nil {
		return err
	}
	return s.saveLastLanguage(language)
}

func (s *SettingsStore) save(snapshot Settings) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to encode settings", err)
	}

	path := filepath.Join(s.dir, settingsFile)
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return errs.Wrap(errs.Internal, "failed to write settings file", err).
			WithContext("path", path)
	}
	log.Debug("Saved settings to %s", path)
	return nil
}

// saveLastLanguage keeps the last-used target language in its own small
// file so it survives a settings reset.
func (s *SettingsStore) saveLastLanguage(language string) error {
	data, _ := json.Marshal(map[string]string{"targetLanguage": language})
	path := filepath.Join(s.dir, lastLanguageFile)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.Internal, "failed to write last-language file", err)
	}
	return nil
}

// LastLanguage returns the separately persisted target language, empty when
// never saved.
func (s *SettingsStore) LastLanguage() string {
	data, err := os.ReadFile(filepath.Join(s.dir, lastLanguageFile))
	if err != nil {
		return ""
	}
	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload["targetLanguage"]
}
