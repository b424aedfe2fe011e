package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/lininn/gitlab-review-mcp/internal/analyzer"
)

var analyzeOpts struct {
	language string
	json     bool
	width    int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Run the code analyzer on a file",
	Long: `Run the same checks as the analyze_code tool and print the report.

Examples:
  gitlab-review-mcp analyze app.py
  gitlab-review-mcp analyze --language javascript build/script
  gitlab-review-mcp analyze --json main.go`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOpts.language, "language", "", "language override (detected from the extension by default)")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.json, "json", false, "print the report as JSON")
	analyzeCmd.Flags().IntVar(&analyzeOpts.width, "width", 100, "word wrap width for the rendered report")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	report, err := analyzer.AnalyzeFile(args[0], analyzeOpts.language)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeOpts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	rendered, err := renderMarkdown(report.Markdown(), analyzeOpts.width)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}

func renderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return out, nil
}
