package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/codereview"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/internal/finance"
	"github.com/hupe1980/assistants/internal/orchestrator"
	"github.com/hupe1980/assistants/internal/research"
	"github.com/hupe1980/assistants/internal/support"
	"github.com/hupe1980/assistants/internal/weather"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

// Assistant names accepted by serve and mcp.
const (
	Weather      = "weather"
	Research     = "research"
	Finance      = "finance"
	CodeReview   = "codereview"
	Support      = "support"
	Orchestrator = "orchestrator"
)

// Deps are the collaborators shared by every assistant.
type Deps struct {
	Config *config.Config
	Model  model.Model
	Logger logging.Logger
	// Fanout selects the parallel orchestrator.
	Fanout bool
}

// Bundle is one assembled assistant.
type Bundle struct {
	// Title is printed when the assistant starts.
	Title    string
	Agent    core.Agent
	Tools    []tool.Tool
	Identity assistant.Identity
	Options  []func(o *assistant.Options)
	// REPL is nil for single-shot assistants.
	REPL func(asst *assistant.Assistant) assistant.REPLOptions

	closers []func() error
}

// Close releases the stores opened for the assistant.
func (b *Bundle) Close() error {
	var errs []error

	for _, c := range b.closers {
		errs = append(errs, c())
	}

	return errors.Join(errs...)
}

// NewAssistant wraps the bundle's agent in the session shim.
func (b *Bundle) NewAssistant(logger logging.Logger, optFns ...func(o *assistant.Options)) (*assistant.Assistant, error) {
	opts := append([]func(o *assistant.Options){func(o *assistant.Options) { o.Logger = logger }}, b.Options...)
	return assistant.New(b.Agent, b.Identity, append(opts, optFns...)...)
}

type builder func(ctx context.Context, d Deps) (*Bundle, error)

var builders = map[string]builder{
	Weather:      buildWeather,
	Research:     buildResearch,
	Finance:      buildFinance,
	CodeReview:   buildCodeReview,
	Support:      buildSupport,
	Orchestrator: buildOrchestrator,
}

// Names lists the registered assistants alphabetically.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Build assembles the named assistant.
func Build(ctx context.Context, name string, d Deps) (*Bundle, error) {
	b, ok := builders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown assistant %q (available: %s)", name, strings.Join(Names(), ", "))
	}

	if d.Logger == nil {
		d.Logger = logging.NoOpLogger{}
	}

	return b(ctx, d)
}

func static(opts assistant.REPLOptions) func(*assistant.Assistant) assistant.REPLOptions {
	return func(*assistant.Assistant) assistant.REPLOptions { return opts }
}

func buildWeather(_ context.Context, d Deps) (*Bundle, error) {
	tk := weather.NewToolkitFromConfig(d.Config, d.Logger)

	return &Bundle{
		Title:    "Weather Assistant Agent Starting...",
		Agent:    weather.NewAgent(d.Model, tk),
		Tools:    tk.Tools(),
		Identity: weather.Identity,
		REPL:     static(weather.REPLOptions()),
	}, nil
}

func buildResearch(_ context.Context, d Deps) (*Bundle, error) {
	tk, err := research.NewToolkitFromConfig(d.Config, d.Logger)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Title:    "Research Assistant Agent Starting...",
		Agent:    research.NewAgent(d.Model, tk),
		Tools:    tk.Tools(),
		Identity: research.Identity,
		REPL:     research.REPLOptions,
	}, nil
}

func buildFinance(_ context.Context, d Deps) (*Bundle, error) {
	tk, err := finance.NewToolkitFromConfig(d.Config, d.Logger)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Title:    "Personal Finance Agent Starting...",
		Agent:    finance.NewAgent(d.Model, tk),
		Tools:    tk.Tools(),
		Identity: finance.Identity,
		REPL:     static(finance.REPLOptions()),
		closers:  []func() error{tk.Close},
	}, nil
}

func buildCodeReview(_ context.Context, d Deps) (*Bundle, error) {
	tk := codereview.NewToolkitFromConfig(d.Config, d.Logger)

	return &Bundle{
		Title:    "Code Review Agent",
		Agent:    codereview.NewAgent(d.Model, tk),
		Tools:    tk.Tools(),
		Identity: codereview.Identity,
	}, nil
}

func buildSupport(ctx context.Context, d Deps) (*Bundle, error) {
	tk, err := support.NewToolkitFromConfig(ctx, d.Config, d.Logger)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Title:    "Customer Support Agent Starting...",
		Agent:    support.NewAgent(d.Model, tk),
		Tools:    tk.Tools(),
		Identity: support.Identity,
		REPL:     static(support.REPLOptions()),
		closers:  []func() error{tk.Close},
	}, nil
}

func buildOrchestrator(_ context.Context, d Deps) (*Bundle, error) {
	tk := orchestrator.NewToolkitFromConfig(d.Config, d.Logger)

	var (
		root core.Agent
		err  error
	)

	if d.Fanout {
		root, err = orchestrator.NewFanoutAgent(d.Model, tk)
	} else {
		root, err = orchestrator.NewAgent(d.Model, tk)
	}

	if err != nil {
		return nil, err
	}

	return &Bundle{
		Title:    "Multi-Agent Task Orchestrator",
		Agent:    root,
		Tools:    tk.Tools(),
		Identity: orchestrator.Identity,
		Options:  []func(o *assistant.Options){orchestrator.AssistantOptions},
		REPL:     static(orchestrator.REPLOptions()),
	}, nil
}
