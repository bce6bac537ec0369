package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/ingest"
	"github.com/fyrsmithlabs/threadwise/internal/message"
)

var (
	indexWorkspace   string
	indexChannelID   string
	indexChannelName string
)

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Index a channel export into the stores",
	Long: `Index a channel history export (a JSON array of raw messages) into
the metadata and vector stores. Re-running on the same export upserts
rather than duplicating.

Examples:
  threadwise index --workspace W1 --channel-id C024BE91L --channel general export.json`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexWorkspace, "workspace", "", "workspace id (required)")
	indexCmd.Flags().StringVar(&indexChannelID, "channel-id", "", "channel id (required)")
	indexCmd.Flags().StringVar(&indexChannelName, "channel", "", "channel name (required)")
	indexCmd.MarkFlagRequired("workspace")
	indexCmd.MarkFlagRequired("channel-id")
	indexCmd.MarkFlagRequired("channel")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading export file: %w", err)
	}

	var raws []message.RawMessage
	if err := json.Unmarshal(content, &raws); err != nil {
		return fmt.Errorf("parsing export file: %w", err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	writer, err := ingest.NewWriter(a.vectors, a.meta, a.logger)
	if err != nil {
		return err
	}

	stored, err := writer.IngestBatch(cmd.Context(), indexWorkspace, indexChannelID, indexChannelName, raws)
	if err != nil {
		return err
	}

	a.logger.Info("export indexed",
		zap.String("workspace_id", indexWorkspace),
		zap.String("channel", indexChannelName),
		zap.Int("stored", stored))
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d messages into #%s\n", stored, indexChannelName)
	return nil
}
