package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lininn/gitlab-review-mcp/internal/gitlab"
)

var resolveOpts struct {
	workingDirectory string
	remote           string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [project]",
	Short: "Show how a project identifier (or this checkout) resolves",
	Long: `Resolve a GitLab project and print every candidate that was tried.

With no argument the project is detected from the git remote of --cwd.

Examples:
  gitlab-review-mcp resolve
  gitlab-review-mcp resolve 278964
  gitlab-review-mcp resolve https://gitlab.com/group/api/-/merge_requests/12`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveOpts.workingDirectory, "cwd", "", "checkout used for git remote detection")
	resolveCmd.Flags().StringVar(&resolveOpts.remote, "remote", "", "git remote to inspect (default from config)")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	service, err := newService(cfg, appLogger)
	if err != nil {
		return err
	}

	in := gitlab.ResolveInput{
		WorkingDirectory: resolveOpts.workingDirectory,
		RemoteName:       resolveOpts.remote,
	}
	if len(args) == 1 {
		in.ProjectID = args[0]
	}

	res, err := service.Resolve(cmd.Context(), in)
	out := cmd.OutOrStdout()
	if res != nil {
		renderResolution(out, res)
	}
	if err != nil {
		if f, ok := gitlab.AsFailure(err); ok {
			renderFailure(out, f)
			return fmt.Errorf("resolution failed: %s", f.Kind())
		}
		return err
	}
	return nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	successLabel = okStyle.Render("verified")
)

// renderResolution prints the attempt trail as a table followed by the
// verified project, if any.
func renderResolution(w io.Writer, res *gitlab.ResolutionResult) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("#", "SOURCE", "CANDIDATE", "REQUEST ID", "RESULT").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for i, a := range res.Attempts {
		t.Row(
			strconv.Itoa(i+1),
			string(a.Candidate.Source),
			a.Candidate.RawProjectID,
			a.Candidate.NormalizedProjectID,
			attemptResult(a),
		)
	}

	if len(res.Attempts) > 0 {
		fmt.Fprintln(w, t.Render())
	} else {
		fmt.Fprintln(w, mutedStyle.Render("No candidates were found."))
	}

	for _, d := range res.Diagnostics {
		fmt.Fprintln(w, mutedStyle.Render("note: "+d))
	}

	if res.Success && res.ProjectData != nil {
		p := res.ProjectData
		fmt.Fprintf(w, "%s %s (id %d) via %s\n",
			titleStyle.Render("Project:"), p.PathWithNamespace, p.ID, res.Source)
		if p.WebURL != "" {
			fmt.Fprintln(w, mutedStyle.Render(p.WebURL))
		}
	}
}

func attemptResult(a gitlab.AttemptRecord) string {
	if a.Success {
		return successLabel
	}
	parts := []string{}
	if a.Status != 0 {
		parts = append(parts, strconv.Itoa(a.Status))
	}
	if a.ErrorMessage != "" {
		parts = append(parts, a.ErrorMessage)
	}
	if len(parts) == 0 {
		parts = append(parts, "failed")
	}
	return failStyle.Render(strings.Join(parts, " "))
}

func renderFailure(w io.Writer, f *gitlab.Failure) {
	fmt.Fprintf(w, "%s %s\n", failStyle.Render("Error:"), f.Message)
	for _, s := range f.Suggestions {
		fmt.Fprintf(w, "  • %s\n", s)
	}
}
