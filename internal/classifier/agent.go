package classifier

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// AgentInference sends prompts through a go-agents provider.
type AgentInference struct {
	cfg gaconfig.AgentConfig
}

// NewAgentInference validates cfg by constructing an agent once.
func NewAgentInference(cfg *gaconfig.AgentConfig) (*AgentInference, error) {
	if _, err := agent.New(cfg); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &AgentInference{cfg: *cfg}, nil
}

// Infer creates an agent for the call and returns the model's reply.
func (a *AgentInference) Infer(ctx context.Context, p Prompt) (string, error) {
	ag, err := agent.New(&a.cfg)
	if err != nil {
		return "", fmt.Errorf("%w: create agent: %w", ErrUnavailable, err)
	}

	resp, err := ag.Chat(ctx, p.Text())
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	return resp.Content(), nil
}

func (a *AgentInference) Name() string {
	name := "agent"
	if a.cfg.Provider != nil {
		name = a.cfg.Provider.Name
	}
	if a.cfg.Model != nil && a.cfg.Model.Name != "" {
		name += "/" + a.cfg.Model.Name
	}
	return name
}
