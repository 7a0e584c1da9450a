package config

import (
	"fmt"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/classifier"
	"github.com/JaimeStill/rapport/internal/composer"
	"github.com/JaimeStill/rapport/internal/dispatcher"
	"github.com/JaimeStill/rapport/pkg/retry"
)

var inferenceEnv = &classifier.Env{
	Provider:          "RAPPORT_INFERENCE_PROVIDER",
	Taxonomy:          "RAPPORT_INFERENCE_TAXONOMY",
	RequestsPerSecond: "RAPPORT_INFERENCE_REQUESTS_PER_SECOND",
	Burst:             "RAPPORT_INFERENCE_BURST",
	GeminiAPIKey:      "RAPPORT_GEMINI_API_KEY",
	GeminiModel:       "RAPPORT_GEMINI_MODEL",
	Retry:             retryEnv("RAPPORT_INFERENCE_RETRY"),
}

var mailEnv = &dispatcher.Env{
	Provider:  "RAPPORT_MAIL_PROVIDER",
	Host:      "RAPPORT_MAIL_HOST",
	Port:      "RAPPORT_MAIL_PORT",
	Username:  "RAPPORT_MAIL_USERNAME",
	Password:  "RAPPORT_MAIL_PASSWORD",
	FromEmail: "RAPPORT_MAIL_FROM_EMAIL",
	FromName:  "RAPPORT_MAIL_FROM_NAME",
	Retry:     retryEnv("RAPPORT_MAIL_RETRY"),
}

var batchEnv = &batch.Env{
	Concurrency:    "RAPPORT_PIPELINE_CONCURRENCY",
	MaxConcurrency: "RAPPORT_PIPELINE_MAX_CONCURRENCY",
	Timeout:        "RAPPORT_PIPELINE_BATCH_TIMEOUT",
}

var composerEnv = &composer.Env{
	TemplatesFile: "RAPPORT_TEMPLATES_FILE",
	Priority:      "RAPPORT_TEMPLATES_PRIORITY",
	BusinessName:  "RAPPORT_BUSINESS_NAME",
	BusinessPhone: "RAPPORT_BUSINESS_PHONE",
	BusinessEmail: "RAPPORT_BUSINESS_EMAIL",
	FromName:      "RAPPORT_BUSINESS_FROM_NAME",
}

func retryEnv(prefix string) *retry.Env {
	return &retry.Env{
		MaxAttempts:     prefix + "_MAX_ATTEMPTS",
		InitialInterval: prefix + "_INITIAL_INTERVAL",
		MaxInterval:     prefix + "_MAX_INTERVAL",
		Multiplier:      prefix + "_MULTIPLIER",
		Timeout:         prefix + "_TIMEOUT",
	}
}

// PipelineConfig holds batch execution bounds and response composition settings.
type PipelineConfig struct {
	Batch     batch.Config    `toml:"batch"`
	Templates composer.Config `toml:"templates"`
}

// Finalize applies defaults, environment variable overrides, and validation
// to the batch and template configs.
func (c *PipelineConfig) Finalize() error {
	if err := c.Batch.Finalize(batchEnv); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := c.Templates.Finalize(composerEnv); err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	c.Batch.Merge(&overlay.Batch)
	c.Templates.Merge(&overlay.Templates)
}
