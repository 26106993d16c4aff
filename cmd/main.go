package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sublayer/sublayer/internal/batch"
	"github.com/sublayer/sublayer/internal/cache"
	"github.com/sublayer/sublayer/internal/catalog"
	"github.com/sublayer/sublayer/internal/config"
	"github.com/sublayer/sublayer/internal/discovery"
	"github.com/sublayer/sublayer/internal/httpapi"
	"github.com/sublayer/sublayer/internal/index"
	"github.com/sublayer/sublayer/internal/llm"
	"github.com/sublayer/sublayer/internal/media"
	"github.com/sublayer/sublayer/internal/progress"
	"github.com/sublayer/sublayer/internal/service"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/internal/translator"
	"github.com/sublayer/sublayer/internal/vfs"
	"github.com/sublayer/sublayer/pkg/log"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	level := log.ParseLevel(cfg.LogLevel)
	log.InitLogger(level)
	if cfg.LogFile != "" {
		if err := log.InitFileLogger(cfg.LogFile, level); err != nil {
			log.Warn("Could not open log file %s: %v, logging to stdout", cfg.LogFile, err)
		}
	}

	settings, err := config.NewSettingsStore(cfg.DataDir)
	if err != nil {
		log.Fatal("Settings store init failed: %v", err)
	}
	if last := settings.LastLanguage(); last != "" && last != settings.Get().TargetLanguage {
		if err := settings.SetTargetLanguage(last); err != nil {
			log.Warn("Could not restore last target language: %v", err)
		}
	}

	store, err := cache.NewStore(filepath.Join(cfg.DataDir, "cache"))
	if err != nil {
		log.Fatal("Cache init failed: %v", err)
	}

	tracker := progress.NewTracker()

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, func() catalog.Credentials {
		s := settings.Get()
		return catalog.Credentials{
			APIKey:   s.OpenSubtitlesAPIKey,
			Username: s.OpenSubtitlesUsername,
			Password: s.OpenSubtitlesPassword,
		}
	})

	engine := &settingsEngine{settings: settings}
	orchestrator := service.NewOrchestrator(catalogClient, engine, store, tracker, settings)

	localFS := vfs.NewLocal(func() string { return settings.Get().LocalRootPath })
	smbFS := vfs.NewSMB(func() vfs.SMBConfig {
		s := settings.Get()
		return vfs.SMBConfig{
			Host:     s.SMBHost,
			Share:    s.SMBShare,
			Username: s.SMBUsername,
			Password: s.SMBPassword,
			Domain:   s.SMBDomain,
		}
	})
	fsSelector := func() vfs.FileSystem {
		if settings.Get().BrowseMode == config.BrowseModeSMB {
			return smbFS
		}
		return localFS
	}

	demuxer := media.NewDemuxer(media.ExecRunner{})
	batchRunner := batch.NewOrchestrator(fsSelector, demuxer, orchestrator)

	opts := []httpapi.Option{httpapi.WithNASBrowser(discovery.NewBrowser())}

	indexStore, err := index.NewStore(filepath.Join(cfg.DataDir, "subtitle-index.db"))
	if err != nil {
		log.Warn("Subtitle index disabled: %v", err)
	} else {
		defer indexStore.Close()
		scheduler := index.NewScheduler(indexStore, func() string {
			return settings.Get().LocalRootPath
		})
		if err := scheduler.Start(cfg.IndexRescanSchedule); err != nil {
			log.Warn("Index rescan schedule %q rejected: %v", cfg.IndexRescanSchedule, err)
		} else {
			defer scheduler.Stop()
		}
		opts = append(opts, httpapi.WithIndex(indexStore))
	}

	if manager := ollamaManager(settings.Get()); manager != nil {
		opts = append(opts, httpapi.WithOllamaManager(manager))
	}

	server := httpapi.NewServer(
		orchestrator, batchRunner, settings, store, tracker,
		fsSelector, demuxer, opts...,
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		log.Info("Listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Shutdown failed: %v", err)
	}
}

// settingsEngine builds the translation pipeline per call so provider and
// model changes in the settings take effect without a restart.
type settingsEngine struct {
	settings *config.SettingsStore
}

func (e *settingsEngine) TranslateCues(ctx context.Context, cues []subtitle.Cue, p translator.Params) ([]subtitle.Cue, error) {
	client, err := llmClient(e.settings.Get())
	if err != nil {
		return nil, err
	}
	return translator.NewEngine(client, "English").TranslateCues(ctx, cues, p)
}

func llmClient(s config.Settings) (llm.Client, error) {
	if s.ModelProvider == string(llm.ProviderOpenAI) {
		return llm.NewOpenAIClient(llm.Options{
			APIKey: s.OpenAIAPIKey,
			Model:  s.OpenAIModel,
		})
	}
	return llm.NewOllamaClient(llm.Options{
		BaseURL: s.OllamaBaseURL,
		Model:   s.OllamaModel,
	})
}

// ollamaManager returns the model management client for the configured
// Ollama server, nil when the settings cannot produce one. A base URL change
// requires a restart to be picked up here.
func ollamaManager(s config.Settings) *llm.OllamaClient {
	model := s.OllamaModel
	if model == "" {
		model = config.DefaultSettings().OllamaModel
	}
	client, err := llm.NewOllamaClient(llm.Options{BaseURL: s.OllamaBaseURL, Model: model})
	if err != nil {
		log.Warn("Ollama management disabled: %v", err)
		return nil
	}
	return client
}
