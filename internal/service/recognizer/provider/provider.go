// Package provider selects the recognizer backend from configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"speech-transcript-service/internal/config"
	"speech-transcript-service/internal/service/recognizer"
	"speech-transcript-service/internal/service/recognizer/google"
	"speech-transcript-service/internal/service/recognizer/mock"
)

// Provider names accepted in STT_PROVIDER.
const (
	Mock   = "mock"
	Google = google.Provider
)

// New returns a factory creating one adapter per turn for the configured
// provider.
func New(cfg config.STTConfig) (recognizer.Factory, error) {
	switch cfg.Provider {
	case Mock, "":
		log.Info().Str("sttProvider", Mock).Msg("Using mock recognizer")
		return func(ctx context.Context) (recognizer.Adapter, error) {
			return mock.New(), nil
		}, nil
	case Google:
		gcfg := GoogleConfig(cfg)
		log.Info().
			Str("sttProvider", Google).
			Str("languageCode", gcfg.LanguageCode).
			Int32("sampleRateHz", gcfg.SampleRateHz).
			Msg("Using Google recognizer")
		return func(ctx context.Context) (recognizer.Adapter, error) {
			return google.New(ctx, gcfg)
		}, nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}
}

// GoogleConfig maps service configuration onto Google streaming settings.
// Unset fields keep the Google defaults.
func GoogleConfig(cfg config.STTConfig) google.Config {
	gcfg := google.DefaultConfig()
	if cfg.LanguageCode != "" {
		gcfg.LanguageCode = cfg.LanguageCode
	}
	if cfg.SampleRateHz > 0 {
		gcfg.SampleRateHz = int32(cfg.SampleRateHz)
	}
	if cfg.AudioEncoding != "" {
		gcfg.AudioEncoding = cfg.AudioEncoding
	}
	gcfg.InterimResults = cfg.InterimResults
	gcfg.SingleUtterance = cfg.SingleUtterance
	return gcfg
}
