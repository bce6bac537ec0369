// Package main implements the threadwise CLI: an HTTP question answering
// server over indexed workspace chat history, plus ask and digest
// subcommands for local use.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "threadwise",
	Short: "Question answering over workspace chat history",
	Long: `threadwise indexes workspace chat messages into a dual-store layout
(relational metadata plus vector text) and answers natural language
questions about them with cited sources.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/threadwise/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(digestCmd)
}
