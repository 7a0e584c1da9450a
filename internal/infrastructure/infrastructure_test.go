package infrastructure_test

import (
	"testing"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/classifier"
	"github.com/JaimeStill/rapport/internal/config"
	"github.com/JaimeStill/rapport/internal/dispatcher"
	"github.com/JaimeStill/rapport/internal/infrastructure"
	"github.com/JaimeStill/rapport/pkg/database"
	"github.com/JaimeStill/rapport/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=rapportstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/rapportstore;"

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "rapport",
			User:            "rapport",
			Password:        "rapport",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "reports",
			ConnectionString: azuriteConnString,
		},
		Inference: classifier.Config{
			Provider: classifier.ProviderAgent,
			Taxonomy: classifier.DefaultTaxonomy,
			Agent: gaconfig.AgentConfig{
				Name: "test-agent",
				Provider: &gaconfig.ProviderConfig{
					Name:    "ollama",
					BaseURL: "http://localhost:11434",
					Options: make(map[string]any),
				},
				Model: &gaconfig.ModelConfig{
					Name: "llama3.1:8b",
				},
			},
		},
		Mail: dispatcher.Config{
			Provider: dispatcher.ProviderLog,
		},
		Pipeline: config.PipelineConfig{
			Batch: batch.Config{Concurrency: 3},
		},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database == nil {
		t.Error("Database is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if infra.Pipeline == nil {
		t.Fatal("Pipeline is nil")
	}
	if got := infra.Pipeline.Coordinator.Concurrency(); got != 3 {
		t.Errorf("Coordinator.Concurrency() = %d, want 3", got)
	}
	if len(infra.Pipeline.Composer.Templates()) == 0 {
		t.Error("composer has no templates")
	}

	infra.Database.Connection().Close()
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.ConnectionString = "not-a-connection-string"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}

func TestNewPipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown inference provider", func(c *config.Config) { c.Inference.Provider = "oracle" }},
		{"unknown mail provider", func(c *config.Config) { c.Mail.Provider = "pigeon" }},
		{"missing templates file", func(c *config.Config) { c.Pipeline.Templates.TemplatesFile = "does-not-exist.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			if _, err := infrastructure.New(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
