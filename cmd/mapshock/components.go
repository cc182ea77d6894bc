package main

import (
	"fmt"

	ctxagent "mapshock/internal/context"
	"mapshock/internal/orchestrate"
	"mapshock/internal/perception"
	"mapshock/internal/protocol"
	"mapshock/internal/research"
	"mapshock/internal/store"
)

// components is the assembled service graph shared by serve and analyze.
type components struct {
	catalog      *protocol.Catalog
	orchestrator *orchestrate.Orchestrator
	sessions     *store.Store // nil when persistence is disabled
}

func (c *components) close() {
	if c.sessions != nil {
		c.sessions.Close()
	}
}

// buildComponents wires the stage components from configuration. Missing
// optional pieces (search key, LLM key, store path) degrade rather than
// fail: the engine always works.
func buildComponents() (*components, error) {
	catalog, err := cfg.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	engine := protocol.NewEngine(catalog, cfg.EngineConfig())

	var searcher ctxagent.Searcher
	if cfg.Search.Enabled && cfg.Search.APIKey != "" {
		searcher = ctxagent.NewSearchClient(ctxagent.SearchConfig{
			APIKey:     cfg.Search.APIKey,
			BaseURL:    cfg.Search.BaseURL,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    cfg.SearchTimeout(),
		})
	}
	enricher := ctxagent.NewEnricher(searcher, 0)

	var llm perception.LLMClient
	if cfg.LLM.APIKey != "" {
		llm, err = perception.NewClient(cfg.PerceptionConfig())
		if err != nil {
			return nil, err
		}
	}
	agent := research.NewAgent(llm, catalog)

	out := &components{catalog: catalog}
	var recorder orchestrate.Recorder
	if cfg.Store.Path != "" {
		sessions, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		out.sessions = sessions
		recorder = sessions
	}

	out.orchestrator = orchestrate.New(enricher, engine, agent, recorder)
	return out, nil
}
