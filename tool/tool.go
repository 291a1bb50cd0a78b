// Package tool implements the function calling surface of the runtime: the
// Tool interface, a FunctionTool adapter for plain Go functions, typed
// argument readers and the transfer_to_agent tool used for delegation.
package tool

import (
	"fmt"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/util"
)

// Tool is a capability an agent can invoke during a conversation. The model
// sees Name, Description and the Parameters JSON schema; Call receives the
// decoded arguments.
//
// Implementations must be safe for concurrent use: a single model turn may
// request several calls which the flow executes in parallel.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError is returned (wrapped in a ToolError) for schema mismatches.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "TOOL_NOT_FOUND"
)

// ToolError is the normalised error shape returned by tools.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes wrapped details that are errors.
func (e *ToolError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

// NewToolError creates a ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Names returns the names of the given tools in order.
func Names(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}
