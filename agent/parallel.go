package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/assistants/core"
)

// ParallelAgentOptions configures a ParallelAgent.
type ParallelAgentOptions struct {
	Description string
	// Timeout bounds the whole fan-out; zero means no limit.
	Timeout time.Duration
	// Aggregate emits one final message joining every child's last answer.
	Aggregate bool
}

// ParallelAgent runs its children concurrently. Each child gets its own
// branch ("<branch>.<parent>.<child>") so siblings do not see each other's
// events, while all events still flow through the parent's emit channel in
// arrival order.
type ParallelAgent struct {
	BaseAgent

	timeout   time.Duration
	aggregate bool
}

// NewParallelAgent creates a parallel coordinator and attaches children as
// its sub-agents.
func NewParallelAgent(name string, children []core.Agent, optFns ...func(o *ParallelAgentOptions)) (*ParallelAgent, error) {
	opts := ParallelAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	p := &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		timeout:   opts.Timeout,
		aggregate: opts.Aggregate,
	}
	p.bind(p)

	if opts.Description != "" {
		p.SetDescription(opts.Description)
	}

	if err := p.SetSubAgents(children...); err != nil {
		return nil, err
	}

	return p, nil
}

type envelope struct {
	ev     core.Event
	resume chan<- struct{}
}

// Run executes every child and returns the first child error after all of
// them finished or were cancelled.
func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	ctx, cancel := context.WithCancel(runCtx.Context)
	defer cancel()

	if p.timeout > 0 {
		var cancelTimeout context.CancelFunc

		ctx, cancelTimeout = context.WithTimeout(ctx, p.timeout)
		defer cancelTimeout()
	}

	children := p.SubAgents()
	g, gctx := errgroup.WithContext(ctx)
	merged := make(chan envelope)

	for _, child := range children {
		emit := make(chan core.Event)
		resume := make(chan struct{}, 1)

		childCtx := runCtx.NewChildContext(emit, resume, buildBranchPath(runCtx.Branch, p.Name()+"."+child.Name()))
		childCtx.Context = gctx
		childCtx.Agent = Info(child)

		g.Go(func() error {
			forwarded := make(chan struct{})

			go func() {
				defer close(forwarded)

				for ev := range emit {
					select {
					case merged <- envelope{ev: ev, resume: resume}:
					case <-gctx.Done():
						return
					}
				}
			}()

			err := child.Run(childCtx)
			close(emit)
			<-forwarded

			if err != nil {
				return fmt.Errorf("parallel execution failed for agent %s: %w", child.Name(), err)
			}

			return nil
		})
	}

	waitErr := make(chan error, 1)

	go func() {
		waitErr <- g.Wait()
		close(merged)
	}()

	answers := map[string]string{}

	for env := range merged {
		if err := p.forward(runCtx, env); err != nil {
			cancel()

			for range merged { //nolint:revive // drain until all children exit
			}

			<-waitErr

			return err
		}

		if env.ev.IsFinalResponse() && env.ev.Text() != "" {
			answers[env.ev.Author] = env.ev.Text()
		}
	}

	if err := <-waitErr; err != nil {
		runCtx.LogError("agent.parallel.error", "agent", p.Name(), "error", err.Error())
		return err
	}

	if !p.aggregate || len(answers) == 0 {
		return nil
	}

	var sb strings.Builder

	for _, child := range children {
		text, ok := answers[child.Name()]
		if !ok {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}

		fmt.Fprintf(&sb, "## %s\n\n%s", child.Name(), text)
	}

	ev := core.NewMessageEvent(runCtx.RunID, p.Name(), sb.String())
	complete := true
	ev.TurnComplete = &complete

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}

	return runCtx.WaitForResume()
}

// forward relays one child event and, for non-partial events, hands the
// parent's resume signal back to the child.
func (p *ParallelAgent) forward(runCtx *core.RunContext, env envelope) error {
	if err := runCtx.EmitEvent(env.ev); err != nil {
		return err
	}

	if env.ev.IsPartial() {
		return nil
	}

	if err := runCtx.WaitForResume(); err != nil {
		return err
	}

	env.resume <- struct{}{}

	return nil
}
