package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lininn/gitlab-review-mcp/internal/credentials"
)

// tokenManager is replaced in tests to keep the user's keyring untouched.
var tokenManager = credentials.NewCredentialManager()

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the GitLab token stored in the OS keyring",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store a personal access token (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			fmt.Fprint(cmd.ErrOrStderr(), "GitLab token: ")
			scanner := bufio.NewScanner(cmd.InOrStdin())
			if scanner.Scan() {
				token = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
		}
		token = strings.TrimSpace(token)

		if err := tokenManager.StoreToken(token); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Stored token %s\n", credentials.MaskToken(token))
		if !credentials.HasKnownPrefix(token) {
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("note: token has no glpat- style prefix; make sure it is a GitLab token"))
		}
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := tokenManager.DeleteToken(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token removed")
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which token the server would use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()

		stored, err := tokenManager.GetToken()
		switch {
		case err == nil:
			fmt.Fprintf(out, "keyring:   %s\n", credentials.MaskToken(stored))
		default:
			fmt.Fprintf(out, "keyring:   %s\n", mutedStyle.Render("none"))
		}

		if cfg != nil && cfg.Token != "" {
			fmt.Fprintf(out, "effective: %s\n", credentials.MaskToken(cfg.Token))
		} else {
			fmt.Fprintf(out, "effective: %s\n", failStyle.Render("none (requests will be unauthenticated)"))
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd, tokenDeleteCmd, tokenStatusCmd)
	rootCmd.AddCommand(tokenCmd)
}
