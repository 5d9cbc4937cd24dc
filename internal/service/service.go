// Package service implements the concierge orchestration: conversation
// persistence around a bounded LLM tool-call loop.
package service

import (
	"github.com/velvetlist/concierge/internal/adapter/llm"
	"github.com/velvetlist/concierge/internal/config"
	store "github.com/velvetlist/concierge/internal/repository"
	"github.com/velvetlist/concierge/internal/tools"
	"github.com/velvetlist/concierge/policy"
)

type Service struct {
	store        store.Store
	llmClient    llm.ChatClient
	registry     *tools.Registry
	config       *config.Config
	policyEngine *policy.Engine
}

func New(db store.Store, llmClient llm.ChatClient, registry *tools.Registry, cfg *config.Config, policyEngine *policy.Engine) *Service {
	return &Service{
		store:        db,
		llmClient:    llmClient,
		registry:     registry,
		config:       cfg,
		policyEngine: policyEngine,
	}
}
