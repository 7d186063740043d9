package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/chroma-mcp/internal/tools"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Header lipgloss.Color
	Name   lipgloss.Color
	Hint   lipgloss.Color
	Error  lipgloss.Color
}

var defaultTheme = Theme{
	Header: lipgloss.Color("#5FAFD7"), // light blue
	Name:   lipgloss.Color("#00D787"), // green
	Hint:   lipgloss.Color("#6C6C6C"), // dim gray
	Error:  lipgloss.Color("#FF005F"), // red
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Header).Bold(true).Padding(0, 1)
}

func (t Theme) cellStyle(col int) lipgloss.Style {
	s := lipgloss.NewStyle().Padding(0, 1)
	switch col {
	case 0:
		return s.Foreground(t.Name)
	case 1:
		return s.Foreground(t.Hint)
	}
	return s
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

// toolSummary is the YAML shape of one descriptor.
type toolSummary struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Required    []string `yaml:"required,omitempty"`
	Optional    []string `yaml:"optional,omitempty"`
}

func summarize(d tools.Descriptor) toolSummary {
	s := toolSummary{Name: d.Name, Description: d.Description, Required: d.RequiredFields()}
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	for _, p := range propertyNames(d) {
		if !required[p] {
			s.Optional = append(s.Optional, p)
		}
	}
	return s
}

// propertyNames returns the schema's property names, sorted.
func propertyNames(d tools.Descriptor) []string {
	if d.InputSchema == nil {
		return nil
	}
	names := make([]string, 0, len(d.InputSchema.Properties))
	for name := range d.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newToolsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "tools [TOOL...]",
		Short: "List the tool catalog",
		Long: `List tools with their description and required arguments. With no
arguments the whole catalog is listed.

Examples:
  chroma-mcp tools
  chroma-mcp tools query_documents --output json
  chroma-mcp tools -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptors, err := selectTools(tools.NewRegistry(), args)
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), descriptors, output, isTerminal(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// selectTools returns the named descriptors in argument order, or the whole catalog.
func selectTools(r *tools.Registry, names []string) ([]tools.Descriptor, error) {
	if len(names) == 0 {
		return r.List(), nil
	}
	out := make([]tools.Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}

func printTools(w io.Writer, descriptors []tools.Descriptor, output string, styled bool) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(descriptors)

	case "yaml":
		summaries := make([]toolSummary, len(descriptors))
		for i, d := range descriptors {
			summaries[i] = summarize(d)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summaries); err != nil {
			return err
		}
		return enc.Close()

	case "table":
		rows := make([][]string, len(descriptors))
		for i, d := range descriptors {
			rows[i] = []string{d.Name, strings.Join(d.RequiredFields(), ", "), d.Description}
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("TOOL", "REQUIRED", "DESCRIPTION").
			Rows(rows...)
		if styled {
			t = t.StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return defaultTheme.headerStyle()
				}
				return defaultTheme.cellStyle(col)
			})
		}
		_, err := fmt.Fprintln(w, t.Render())
		return err

	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
