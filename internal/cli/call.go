package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chroma-mcp/internal/tools"
)

// ErrToolFailed is returned by call when the tool result is an error.
var ErrToolFailed = errors.New("tool call failed")

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call TOOL [JSON]",
		Short: "Dispatch one tool call locally and print the result",
		Long: `Dispatch one tool call against the configured backend and print the result text.
Arguments are a JSON object; "-" reads them from stdin. Omitted arguments are {}.

Examples:
  chroma-mcp call list_collections
  chroma-mcp call create_collection '{"collection_name":"notes"}'
  echo '{"collection_name":"notes","documents":["hello"]}' | chroma-mcp call add_documents -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runCall,
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	payload, err := readArguments(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}

	cfg, logger, cleanup, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	result := tools.Envelope(a.dispatcher.Dispatch(ctx, args[0], payload))
	return printResult(cmd.OutOrStdout(), result, isTerminal(cmd.OutOrStdout()))
}

// readArguments returns the raw JSON arguments, reading stdin for "-".
func readArguments(stdin io.Reader, args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	data := []byte(args[0])
	if args[0] == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("read arguments: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("arguments are not valid JSON: %s", truncateArg(string(data)))
	}
	return data, nil
}

func printResult(w io.Writer, result *mcp.CallToolResult, styled bool) error {
	for _, c := range result.Content {
		text, ok := c.(*mcp.TextContent)
		if !ok {
			continue
		}
		out := text.Text
		if result.IsError && styled {
			out = defaultTheme.errorStyle().Render(out)
		}
		if _, err := fmt.Fprintln(w, out); err != nil {
			return err
		}
	}
	if result.IsError {
		return ErrToolFailed
	}
	return nil
}

func truncateArg(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

