package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/retrieval"
)

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Run one search engine request and print the answers",
	Long: `Run the mailbox search engine once from the command line.

The request is expanded into several Gmail queries and three questions, the
matching emails are read, and each question is answered from them.

Requires a stored OAuth token: run "gmail-agent serve" once to sign in.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		persistLogs, err := setupLogger(true, logFile)
		if err != nil {
			return err
		}
		defer persistLogs()

		a, err := newAgent(cfg, cfg.OAuth.RedirectURL)
		if err != nil {
			return err
		}
		defer a.persistToken()

		if _, err := a.tok.OAuthToken(); errors.Is(err, auth.ErrTokenNotSet) {
			return errors.New(`no OAuth token stored, run "gmail-agent serve" to sign in first`)
		}

		res, err := a.engine.Run(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return describeFailure(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Query: %s\nMessages read: %d\n", res.Query, res.Documents)
		if len(res.Answers) == 0 {
			fmt.Fprintln(out, "\nNo answers found.")
			return nil
		}

		for _, ans := range res.Answers {
			fmt.Fprintf(out, "\nQ: %s\nA: %s\n", ans.Question, ans.Answer)
			for _, s := range ans.Sources {
				fmt.Fprintf(out, "   - %s | %s | %s\n", s.Date, s.From, s.Subject)
			}
		}

		return nil
	},
}

// describeFailure puts the readable message in front of err and keeps err
// wrapped so callers can still match it.
func describeFailure(err error) error {
	msg := retrieval.Describe(err)
	if msg == err.Error() {
		return err
	}

	return fmt.Errorf("%s: %w", msg, err)
}
