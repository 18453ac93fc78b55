package main

import (
	"github.com/fieldnotes/second-brain/internal/classifier"
	"github.com/fieldnotes/second-brain/internal/config"
	"github.com/fieldnotes/second-brain/internal/digest"
	"github.com/fieldnotes/second-brain/internal/query"
	"github.com/fieldnotes/second-brain/internal/transcriber"
	"github.com/fieldnotes/second-brain/internal/vault"
	"github.com/fieldnotes/second-brain/pkg/anthropic"
	"github.com/fieldnotes/second-brain/pkg/whisper"
)

// services is the composition root: one vault plus the oracle-backed
// services around it. Oracle clients are built here and injected, never
// owned by the components themselves.
type services struct {
	vault       *vault.Vault
	classifier  *classifier.Service
	query       *query.Service
	digest      *digest.Service
	transcriber *transcriber.Service
}

func newServices(cfg *config.Config) (*services, error) {
	v, err := vault.New(cfg.Vault.Path)
	if err != nil {
		return nil, err
	}

	oracle := anthropic.NewClient(cfg.Anthropic.Key)

	return &services{
		vault: v,
		classifier: classifier.New(oracle, v, classifier.Config{
			Model:               cfg.Anthropic.Model,
			ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
		}),
		query:  query.New(oracle, v, query.Config{Model: cfg.Anthropic.Model}),
		digest: digest.New(oracle, v, digest.Config{Model: cfg.Anthropic.Model}),
		transcriber: transcriber.New(
			whisper.NewClient(cfg.OpenAI.Key),
			cfg.OpenAI.WhisperModel,
		),
	}, nil
}
