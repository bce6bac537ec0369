package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/threadwise/internal/digest"
)

var (
	digestWorkspace string
	digestChannel   string
	digestDays      int
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Build an activity digest",
	Long: `Build a markdown digest of recent workspace activity: trending
topics, most-reacted messages, channel activity, and top contributors.

Examples:
  threadwise digest --workspace W1
  threadwise digest --workspace W1 --days 14 --channel engineering`,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().StringVar(&digestWorkspace, "workspace", "", "workspace id (required)")
	digestCmd.Flags().StringVar(&digestChannel, "channel", "", "restrict to one channel")
	digestCmd.Flags().IntVar(&digestDays, "days", 0, "lookback window in days (default 7)")
	digestCmd.MarkFlagRequired("workspace")
}

func runDigest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	d, err := a.digests.Build(cmd.Context(), digestWorkspace, digest.Options{
		Days:        digestDays,
		ChannelName: digestChannel,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), d.Markdown())
	return nil
}
