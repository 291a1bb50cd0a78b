package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgMagenta, color.Bold)
	agentColor   = color.New(color.FgGreen, color.Bold)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	promptColor  = color.New(color.FgCyan)
)

// ColorPrinter renders REPL output with terminal colors. Colors are dropped
// automatically when the output is not a terminal.
type ColorPrinter struct {
	W io.Writer
}

func (p ColorPrinter) Prompt(text string) { promptColor.Fprint(p.W, text) }

func (p ColorPrinter) Agent(name, msg string) {
	fmt.Fprintf(p.W, "\n%s %s\n", agentColor.Sprintf("[%s]", name), msg)
}

func (p ColorPrinter) Info(msg string) { fmt.Fprintln(p.W, msg) }

func (p ColorPrinter) Success(msg string) {
	fmt.Fprintf(p.W, "\n%s %s\n", successColor.Sprint("[SUCCESS]"), msg)
}

func (p ColorPrinter) Error(msg string) {
	fmt.Fprintf(p.W, "\n%s %s\n", errorColor.Sprint("[ERROR]"), msg)
}

// Header prints a banner framed by rules.
func (p ColorPrinter) Header(lines ...string) {
	rule := strings.Repeat("=", 70)

	headerColor.Fprintln(p.W, "\n"+rule)

	for _, l := range lines {
		headerColor.Fprintln(p.W, "  "+l)
	}

	headerColor.Fprintln(p.W, rule+"\n")
}

// Section prints a titled block such as the final result of a task.
func (p ColorPrinter) Section(title, body string) {
	rule := strings.Repeat("=", 70)

	successColor.Fprintln(p.W, "\n"+rule)
	successColor.Fprintln(p.W, "  "+title)
	successColor.Fprintln(p.W, rule)
	fmt.Fprintf(p.W, "%s\n\n", body)
}

// Failure prints a fatal error the way the binary reports it before exiting.
func Failure(w io.Writer, err error) {
	errorColor.Fprintf(w, "Error: %v\n", err)
}
