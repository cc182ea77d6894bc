// Package orchestrate chains the analysis stages into one workflow: context
// analysis, protocol selection, research execution, and finalization. Every
// stage is timed and every stage degrades instead of failing the workflow.
package orchestrate

import (
	"context"
	"time"

	"github.com/google/uuid"

	ctxagent "mapshock/internal/context"
	"mapshock/internal/logging"
	"mapshock/internal/protocol"
	"mapshock/internal/research"
)

// Stage names, in execution order.
const (
	StageContext   = "context_analysis"
	StageSelection = "protocol_selection"
	StageResearch  = "research_execution"
	StageFinalize  = "finalization"
)

// Stages lists the workflow stages in order.
func Stages() []string {
	return []string{StageContext, StageSelection, StageResearch, StageFinalize}
}

// ProgressEvent is emitted at the start and end of every stage.
type ProgressEvent struct {
	WorkflowID string        `json:"workflow_id"`
	Stage      string        `json:"stage"`
	Status     string        `json:"status"` // "started" or "completed"
	Elapsed    time.Duration `json:"elapsed,omitempty"`
}

// ProgressFunc receives stage events; nil disables progress reporting.
// Callers must not block: events fire on the workflow goroutine.
type ProgressFunc func(ProgressEvent)

// Result is the complete workflow output.
type Result struct {
	WorkflowID  string                    `json:"workflow_id"`
	Query       string                    `json:"query"`
	Enriched    *ctxagent.Enriched        `json:"enriched_context"`
	Selection   *protocol.SelectionResult `json:"selection"`
	Report      *research.Report          `json:"report"`
	StageTimes  map[string]time.Duration  `json:"stage_times"`
	StartedAt   time.Time                 `json:"started_at"`
	CompletedAt time.Time                 `json:"completed_at"`
}

// Recorder persists completed workflows; the store implements it. A nil
// recorder disables persistence.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// Orchestrator owns the immutable stage components and runs workflows
// against them. Safe for concurrent use.
type Orchestrator struct {
	enricher *ctxagent.Enricher
	engine   *protocol.Engine
	agent    *research.Agent
	recorder Recorder
}

// New builds an orchestrator. The engine is required; enricher defaults to
// extraction-only, agent to fallback reports, recorder to disabled.
func New(enricher *ctxagent.Enricher, engine *protocol.Engine, agent *research.Agent, recorder Recorder) *Orchestrator {
	if enricher == nil {
		enricher = ctxagent.NewEnricher(nil, 0)
	}
	if agent == nil {
		agent = research.NewAgent(nil, engine.Catalog())
	}
	return &Orchestrator{
		enricher: enricher,
		engine:   engine,
		agent:    agent,
		recorder: recorder,
	}
}

// Run executes the workflow for one query. It always returns a result; the
// caller bounds total time through ctx, and degraded stages surface in the
// result rather than as errors.
func (o *Orchestrator) Run(ctx context.Context, query string, progress ProgressFunc) *Result {
	log := logging.Get(logging.CategoryBoot)

	res := &Result{
		WorkflowID: uuid.NewString(),
		Query:      query,
		StageTimes: make(map[string]time.Duration, 4),
		StartedAt:  time.Now().UTC(),
	}
	emit := func(ev ProgressEvent) {
		if progress != nil {
			ev.WorkflowID = res.WorkflowID
			progress(ev)
		}
	}
	timed := func(stage string, fn func()) {
		emit(ProgressEvent{Stage: stage, Status: "started"})
		start := time.Now()
		fn()
		elapsed := time.Since(start)
		res.StageTimes[stage] = elapsed
		emit(ProgressEvent{Stage: stage, Status: "completed", Elapsed: elapsed})
	}

	timed(StageContext, func() {
		res.Enriched = o.enricher.Enrich(ctx, query)
	})

	timed(StageSelection, func() {
		res.Selection = o.engine.Select(res.Enriched.EngineContext())
	})

	timed(StageResearch, func() {
		res.Report = o.agent.Conduct(ctx, research.Input{
			Enriched:  res.Enriched,
			Selection: res.Selection,
		})
	})

	timed(StageFinalize, func() {
		res.CompletedAt = time.Now().UTC()
		if o.recorder != nil {
			if err := o.recorder.Record(ctx, res); err != nil {
				// Persistence is best-effort; the result is already complete.
				log.Warnw("failed to record workflow", "workflow_id", res.WorkflowID, "error", err)
			}
		}
	})

	log.Infow("workflow complete",
		"workflow_id", res.WorkflowID,
		"tier", res.Selection.Tier,
		"protocols", len(res.Selection.SelectedProtocols),
		"elapsed", res.CompletedAt.Sub(res.StartedAt),
	)
	return res
}
