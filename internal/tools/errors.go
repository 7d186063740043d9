package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Kind classifies a dispatch failure.
type Kind int

const (
	// KindMethodNotFound means no tool is registered under the requested name.
	KindMethodNotFound Kind = iota + 1
	// KindInvalidParams means the payload does not match the tool's input schema.
	KindInvalidParams
	// KindValidation means a domain rule was violated.
	KindValidation
	// KindBackend means the collaborator failed; the message is passed through verbatim.
	KindBackend
)

// JSON-RPC style error codes.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeValidation     = -32001
	CodeBackend        = -32003
)

// Code returns the JSON-RPC style error code for the kind.
func (k Kind) Code() int {
	switch k {
	case KindMethodNotFound:
		return CodeMethodNotFound
	case KindInvalidParams:
		return CodeInvalidParams
	case KindValidation:
		return CodeValidation
	default:
		return CodeBackend
	}
}

func (k Kind) String() string {
	switch k {
	case KindMethodNotFound:
		return "method_not_found"
	case KindInvalidParams:
		return "invalid_params"
	case KindValidation:
		return "validation_error"
	case KindBackend:
		return "backend_error"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by Dispatch.
type Error struct {
	Kind    Kind
	Tool    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hint returns a recovery hint for the caller, if the kind has one.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindMethodNotFound:
		return "Call tools/list to see the available tools"
	case KindInvalidParams:
		return "Check the tool's input schema for required fields and types"
	default:
		return ""
	}
}

func methodNotFound(name string) *Error {
	return &Error{Kind: KindMethodNotFound, Tool: name, Message: "Method not found: " + name}
}

func invalidParams(name string, err error) *Error {
	detail := strings.ReplaceAll(err.Error(), "<invalid reflect.Value>", "null")
	return &Error{
		Kind:    KindInvalidParams,
		Tool:    name,
		Message: fmt.Sprintf("Invalid parameters for %s: %s", name, detail),
		Err:     err,
	}
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func backendError(name string, err error) *Error {
	return &Error{Kind: KindBackend, Tool: name, Message: err.Error(), Err: err}
}

// KindOf returns the kind of a dispatch error, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so LLM can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// Envelope shapes a dispatch outcome into a tool result.
// Strings are returned verbatim; any other value is rendered as indented JSON.
func Envelope(value any, err error) *mcp.CallToolResult {
	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			return ErrorResult(te.Message, te.Hint())
		}
		return ErrorResult(err.Error(), "")
	}
	if s, ok := value.(string); ok {
		return TextResult(s)
	}
	data, mErr := json.MarshalIndent(value, "", "  ")
	if mErr != nil {
		return ErrorResult("Failed to encode result: "+mErr.Error(), "")
	}
	return TextResult(string(data))
}
