package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/store"
)

// Service persists AppSettings in the key-value settings table.
type Service struct {
	kv store.SettingsStore
}

// NewService creates a settings service on top of kv.
func NewService(kv store.SettingsStore) *Service {
	return &Service{kv: kv}
}

// Load returns the stored settings. Missing keys fall back to the built-in
// defaults, and a stored config that no longer parses is replaced by the
// default config rather than reported.
func (s *Service) Load(ctx context.Context) (models.AppSettings, error) {
	values, err := s.kv.GetSettings(ctx, store.KeyConfig, store.KeyExportURL)
	if err != nil {
		return models.DefaultSettings(), err
	}

	out := models.DefaultSettings()
	if raw, ok := values[store.KeyConfig]; ok {
		var config []models.CategoryConfig
		if err := json.Unmarshal([]byte(raw), &config); err != nil {
			slog.Warn("settings: stored config unreadable, using defaults", slog.String("error", err.Error()))
		} else {
			out.Config = config
		}
	}
	if url, ok := values[store.KeyExportURL]; ok {
		out.ExportURL = url
	}
	return out, nil
}

// Save writes both settings keys in one transaction.
func (s *Service) Save(ctx context.Context, in models.AppSettings) error {
	config := in.Config
	if config == nil {
		config = []models.CategoryConfig{}
	}
	encoded, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("settings: encode config: %w", err)
	}
	return s.kv.PutSettings(ctx, map[string]string{
		store.KeyConfig:    string(encoded),
		store.KeyExportURL: strings.TrimSpace(in.ExportURL),
	})
}

// SaveRaw validates editor text and saves it together with exportURL.
// Nothing is written when the config is invalid.
func (s *Service) SaveRaw(ctx context.Context, rawConfig, exportURL string) (models.AppSettings, error) {
	config, err := Parse(rawConfig)
	if err != nil {
		return models.AppSettings{}, err
	}
	out := models.AppSettings{Config: config, ExportURL: strings.TrimSpace(exportURL)}
	if err := s.Save(ctx, out); err != nil {
		return models.AppSettings{}, err
	}
	return out, nil
}

// SaveConfig validates rawConfig and replaces only the metric config,
// keeping the stored export URL.
func (s *Service) SaveConfig(ctx context.Context, rawConfig string) (models.AppSettings, error) {
	config, err := Parse(rawConfig)
	if err != nil {
		return models.AppSettings{}, err
	}
	current, err := s.Load(ctx)
	if err != nil {
		return models.AppSettings{}, err
	}
	current.Config = config
	if err := s.Save(ctx, current); err != nil {
		return models.AppSettings{}, err
	}
	return current, nil
}
