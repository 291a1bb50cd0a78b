package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Printer renders REPL output.
type Printer interface {
	Prompt(text string)
	Agent(name, msg string)
	Info(msg string)
	Success(msg string)
	Error(msg string)
}

// Command handles a REPL line starting with its keyword. args is the rest
// of the line, trimmed.
type Command func(ctx context.Context, args string) (string, error)

// REPLOptions configures the interactive loop.
type REPLOptions struct {
	Prompt  string
	Banner  []string
	Goodbye string
	// ResetMessage is printed after clear/reset. An empty message disables
	// the reset command.
	ResetMessage string
	Commands     map[string]Command
}

var quitWords = map[string]bool{"quit": true, "exit": true, "bye": true}

// RunREPL reads lines from in until EOF, a quit word or ctx cancellation.
// Every other line is sent to the assistant and the reply printed.
func RunREPL(ctx context.Context, asst *Assistant, in io.Reader, p Printer, opts REPLOptions) error {
	if opts.Prompt == "" {
		opts.Prompt = "You: "
	}

	for _, line := range opts.Banner {
		p.Info(line)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})

	defer close(done)

	go func() {
		defer close(lines)

		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}

		readErr <- sc.Err()
	}()

	for {
		p.Prompt(opts.Prompt)

		var (
			line string
			ok   bool
		)

		select {
		case <-ctx.Done():
			p.Success(opts.Goodbye)
			return nil
		case line, ok = <-lines:
		}

		if !ok {
			p.Success(opts.Goodbye)

			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		lower := strings.ToLower(input)

		if quitWords[lower] {
			p.Success(opts.Goodbye)
			return nil
		}

		if (lower == "clear" || lower == "reset") && opts.ResetMessage != "" {
			if _, err := asst.Reset(); err != nil {
				p.Error(fmt.Sprintf("Error: %v", err))
				continue
			}

			p.Success(opts.ResetMessage)

			continue
		}

		if handled := runCommand(ctx, asst, p, opts.Commands, input); handled {
			continue
		}

		p.Agent(asst.Name(), asst.Query(ctx, input))
	}
}

func runCommand(ctx context.Context, asst *Assistant, p Printer, cmds map[string]Command, input string) bool {
	keyword, args, _ := strings.Cut(input, " ")

	cmd, ok := cmds[strings.ToLower(keyword)]
	if !ok {
		return false
	}

	reply, err := cmd(ctx, strings.TrimSpace(args))
	if err != nil {
		p.Error(err.Error())
		return true
	}

	p.Agent(asst.Name(), reply)

	return true
}

// PlainPrinter writes uncolored output.
type PlainPrinter struct {
	W io.Writer
}

func (p PlainPrinter) Prompt(text string)     { fmt.Fprint(p.W, text) }
func (p PlainPrinter) Agent(name, msg string) { fmt.Fprintf(p.W, "\n[%s] %s\n", name, msg) }
func (p PlainPrinter) Info(msg string)        { fmt.Fprintln(p.W, msg) }
func (p PlainPrinter) Success(msg string)     { fmt.Fprintf(p.W, "[SUCCESS] %s\n", msg) }
func (p PlainPrinter) Error(msg string)       { fmt.Fprintf(p.W, "[ERROR] %s\n", msg) }
