package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/threadwise/internal/qa"
)

var (
	askWorkspace   string
	askChannel     string
	askDaysBack    int
	askContextSize int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from indexed history",
	Long: `Answer a natural language question from a workspace's indexed
message history.

Examples:
  threadwise ask --workspace W1 "what did the team ship last week?"
  threadwise ask --workspace W1 --channel engineering "status of the migration?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askWorkspace, "workspace", "", "workspace id (required)")
	askCmd.Flags().StringVar(&askChannel, "channel", "", "restrict to one channel")
	askCmd.Flags().IntVar(&askDaysBack, "days", 0, "restrict to the last N days")
	askCmd.Flags().IntVar(&askContextSize, "context", 0, "messages of context to use (default 10)")
	askCmd.MarkFlagRequired("workspace")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	question := strings.Join(args, " ")

	answer, err := a.qa.Ask(cmd.Context(), askWorkspace, question, qa.AskOptions{
		ContextSize:   askContextSize,
		ChannelFilter: askChannel,
		DaysBack:      askDaysBack,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	if answer.ConfidenceExplanation != "" {
		fmt.Fprintf(out, "\nConfidence: %d%% - %s\n", answer.Confidence, answer.ConfidenceExplanation)
	} else {
		fmt.Fprintf(out, "\nConfidence: %d%%\n", answer.Confidence)
	}

	if len(answer.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range answer.Sources {
			fmt.Fprintf(out, "  [#%s] %s: %s\n", s.ChannelName, s.UserName, s.Excerpt)
		}
	}
	if len(answer.Links) > 0 {
		fmt.Fprintln(out, "\nLinks:")
		for _, l := range answer.Links {
			fmt.Fprintf(out, "  %s (%s)\n", l.URL, l.Type)
		}
	}
	return nil
}
