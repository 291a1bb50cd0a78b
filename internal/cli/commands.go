package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/codereview"
	"github.com/hupe1980/assistants/internal/httpapi"
	"github.com/hupe1980/assistants/internal/mcpserver"
	"github.com/hupe1980/assistants/model"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <file_path>",
		Short: "Review one source file",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: %s\nexample: %s review internal/weather/agent.go", cmd.UseLine(), cmd.Root().Name())
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			b, err := a.build(cmd.Context(), CodeReview, false)
			if err != nil {
				return err
			}
			defer b.Close()

			p := a.printer()
			p.Success("Code Review Agent - Reviewing: " + path)

			asst, err := b.NewAssistant(a.logger)
			if err != nil {
				return err
			}

			review, err := asst.Ask(cmd.Context(), codereview.ReviewPrompt(path))
			if err != nil {
				return fmt.Errorf("failed to review code: %w", err)
			}

			if review == "" {
				review = assistant.NoResponse
			}

			p.Agent(codereview.AgentName, review)

			return nil
		},
	}
}

func (a *app) newOrchestratorCmd() *cobra.Command {
	var fanout bool

	cmd := &cobra.Command{
		Use:   "orchestrator [task...]",
		Short: "Coordinate specialist agents on a complex task",
		Long: `Without arguments the orchestrator starts an interactive loop. With
arguments the words form a single task whose result is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.printer()
			p.Header("Multi-Agent Task Orchestrator")

			b, err := a.build(cmd.Context(), Orchestrator, fanout)
			if err != nil {
				return err
			}
			defer b.Close()

			if len(args) == 0 {
				opts := b.REPL(nil)
				for _, line := range opts.Banner {
					p.Info(line)
				}

				opts.Banner = nil

				asst, err := b.NewAssistant(a.logger)
				if err != nil {
					return err
				}

				p.Success("All agents initialized successfully!")

				return assistant.RunREPL(cmd.Context(), asst, a.opts.In, p, opts)
			}

			asst, err := b.NewAssistant(a.logger)
			if err != nil {
				return err
			}

			p.Success("All agents initialized successfully!")

			result, err := asst.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to execute task: %w", err)
			}

			if result == "" {
				result = assistant.NoResponse
			}

			p.Section("RESULT", result)

			return nil
		},
	}

	cmd.Flags().BoolVar(&fanout, "fanout", false, "Send the task to every specialist in parallel")

	return cmd
}

func (a *app) newServeCmd() *cobra.Command {
	var (
		addr   string
		fanout bool
	)

	cmd := &cobra.Command{
		Use:       "serve <assistant>",
		Short:     "Serve an assistant over HTTP",
		Args:      cobra.ExactArgs(1),
		ValidArgs: Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			b, err := a.build(ctx, args[0], fanout)
			if err != nil {
				return err
			}
			defer b.Close()

			asst, err := b.NewAssistant(a.logger)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := &http.Server{
				Addr: addr,
				Handler: httpapi.New(asst, func(o *httpapi.Options) {
					o.Logger = a.logger
					o.RateLimitRPS = a.cfg.Server.RateLimitRPS
					o.RateLimitBurst = a.cfg.Server.RateLimitBurst
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			return a.listen(ctx, srv, asst.Name())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&fanout, "fanout", false, "Serve the parallel orchestrator")

	return cmd
}

// listen runs srv until ctx is cancelled, then shuts it down gracefully.
func (a *app) listen(ctx context.Context, srv *http.Server, name string) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http.server.start", "addr", srv.Addr, "assistant", name)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("http.server.shutdown", "addr", srv.Addr)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (a *app) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp <assistant>",
		Short: "Expose an assistant's tools over MCP (stdio)",
		Long: `Runs an MCP server on stdin/stdout. The client's model drives the
tools directly, so no model credentials are needed.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			b, err := Build(ctx, args[0], Deps{Config: a.cfg, Model: model.NewScriptedModel(), Logger: a.logger})
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := mcpserver.New(b.Tools, func(o *mcpserver.Options) {
				o.Name = "assistants-" + strings.ToLower(args[0])
				o.Instructions = b.Agent.Description()
				o.AgentName = b.Agent.Name()
				o.AppName = b.Identity.AppName
				o.UserID = b.Identity.UserID
				o.SessionID = b.Identity.SessionID
				o.Logger = a.logger
			})
			if err != nil {
				return err
			}

			a.logger.Info("mcp.server.start", "assistant", b.Agent.Name(), "tools", len(b.Tools))

			err = s.ServeStdio(ctx, a.opts.In, a.opts.Out)
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		},
	}
}
