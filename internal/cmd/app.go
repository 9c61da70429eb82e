package cmd

import (
	"context"
	"errors"
	"fmt"

	"browsernerd-agent/internal/agent"
	"browsernerd-agent/internal/browser"
	"browsernerd-agent/internal/config"
	"browsernerd-agent/internal/history"
	"browsernerd-agent/internal/mangle"
	"browsernerd-agent/internal/recorder"
	"browsernerd-agent/internal/tasks"
	"browsernerd-agent/internal/vision"

	"go.uber.org/zap"
)

// app holds the wired collaborators of one command invocation.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	engine  *mangle.Engine
	history *history.Store
	parser  *tasks.Parser
	// nil when no vision API key is configured
	runner *agent.Runner

	closers []func() error
}

// newApp wires storage, the fact engine, the query parser and, when a vision
// key is available, the browser runner. requireRunner turns a missing key
// into an error.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, requireRunner bool, options ...agent.Option) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	engine, err := mangle.NewEngine(cfg.Mangle, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize mangle engine: %w", err)
	}
	a.engine = engine

	store, err := history.Open(cfg.History.Path, cfg.History.KeepRecent)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	a.history = store
	a.closers = append(a.closers, store.Close)

	gemini, err := vision.NewGemini(ctx, cfg.Vision.APIKey(), cfg.Vision.Model, cfg.Vision.Temperature)
	switch {
	case errors.Is(err, vision.ErrMissingAPIKey) && !requireRunner:
		logger.Warn("no vision API key, browser runs disabled", zap.String("env", cfg.Vision.APIKeyEnv))
	case err != nil:
		_ = a.Close()
		return nil, err
	}

	if gemini == nil {
		a.parser = newParser(cfg, logger, nil)
		return a, nil
	}
	a.parser = newParser(cfg, logger, gemini)

	trace, err := recorder.NewTrace(cfg.Dataset.TraceDir, 0)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, trace.Close)

	client := vision.NewClient(gemini, visionOptions(cfg.Vision), logger)
	driver := browser.NewDriver(cfg.Browser, logger)

	options = append([]agent.Option{
		agent.WithTrace(trace),
		agent.WithHistory(store),
		agent.WithFacts(engine),
		agent.WithLogger(logger),
	}, options...)
	a.runner = agent.NewRunner(driver, client, runnerOptions(cfg), options...)
	return a, nil
}

// newParser returns the heuristic parser, backed by the model when
// vision.llm_parsing is set and a generator exists.
func newParser(cfg config.Config, logger *zap.Logger, gen tasks.Generator) *tasks.Parser {
	opts := []tasks.ParserOption{tasks.WithParserLogger(logger)}
	if cfg.Vision.LLMParsing && gen != nil {
		opts = append(opts, tasks.WithIntentSource(tasks.NewLLMParser(gen)))
	}
	return tasks.NewParser(opts...)
}

func visionOptions(cfg config.VisionConfig) vision.Options {
	limits := vision.DefaultLimits()
	if cfg.MaxElements > 0 {
		limits.MaxElements = cfg.MaxElements
	}
	if cfg.MaxHistory > 0 {
		limits.MaxHistory = cfg.MaxHistory
	}
	return vision.Options{
		Limits:            limits,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		RequestTimeout:    cfg.Timeout(),
	}
}

func runnerOptions(cfg config.Config) agent.Options {
	opts := agent.DefaultOptions()
	opts.MaxSteps = cfg.Agent.MaxSteps
	opts.MaxFailures = cfg.Agent.MaxFailures
	opts.StepDelay = cfg.Agent.StepPause()
	opts.DatasetRoot = cfg.Dataset.Dir
	opts.Supervise = cfg.Supervisor.IsEnabled()
	opts.Vocabulary = cfg.Supervisor.Vocabulary
	return opts
}

// Close releases everything newApp opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
