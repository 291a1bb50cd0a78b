// Package cli holds the cobra commands of the assistants binary: one
// interactive command per assistant plus serve (HTTP) and mcp (stdio).
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/internal/llm"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
)

// Options configures the command tree.
type Options struct {
	In  io.Reader
	Out io.Writer
	// Err receives log output so it never interleaves with replies.
	Err io.Writer
	// Model replaces the configured provider when set.
	Model model.Model
}

type app struct {
	opts       Options
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.ZapAdapter
}

// NewRootCmd creates the assistants command with all subcommands.
func NewRootCmd(optFns ...func(o *Options)) *cobra.Command {
	opts := Options{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &app{opts: opts}

	cmd := &cobra.Command{
		Use:   "assistants",
		Short: "Tool-calling AI assistants",
		Long: `Six assistants built on one agent runtime: weather, research, personal
finance, code review, customer support and a multi-agent orchestrator.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup() },
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.SetIn(opts.In)
	cmd.SetOut(opts.Out)
	cmd.SetErr(opts.Err)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default $ASSISTANTS_CONFIG)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	cmd.AddCommand(
		a.newChatCmd(Weather, "Ask about current weather and forecasts"),
		a.newChatCmd(Research, "Research topics on the web and write reports"),
		a.newChatCmd(Finance, "Track transactions, budgets and savings goals"),
		a.newChatCmd(Support, "Customer support with a knowledge base and tickets"),
		a.newReviewCmd(),
		a.newOrchestratorCmd(),
		a.newServeCmd(),
		a.newMCPCmd(),
	)

	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.NewZapLogger(level, cfg.Log.Format, a.opts.Err)

	return nil
}

// model returns the chat model, validating credentials first.
func (a *app) model() (model.Model, error) {
	if a.opts.Model != nil {
		return a.opts.Model, nil
	}

	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	return llm.New(a.cfg)
}

func (a *app) build(ctx context.Context, name string, fanout bool) (*Bundle, error) {
	m, err := a.model()
	if err != nil {
		return nil, err
	}

	return Build(ctx, name, Deps{Config: a.cfg, Model: m, Logger: a.logger, Fanout: fanout})
}

func (a *app) printer() ColorPrinter { return ColorPrinter{W: a.opts.Out} }

// chat runs the interactive loop of an assembled assistant.
func (a *app) chat(ctx context.Context, b *Bundle, p ColorPrinter) error {
	if b.REPL == nil {
		return fmt.Errorf("%s has no interactive mode", b.Agent.Name())
	}

	asst, err := b.NewAssistant(a.logger)
	if err != nil {
		return err
	}

	return assistant.RunREPL(ctx, asst, a.opts.In, p, b.REPL(asst))
}

func (a *app) newChatCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.build(cmd.Context(), name, false)
			if err != nil {
				return err
			}
			defer b.Close()

			p := a.printer()
			p.Success(b.Title)

			return a.chat(cmd.Context(), b, p)
		},
	}
}
