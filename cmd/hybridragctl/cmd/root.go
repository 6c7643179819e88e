// Package cmd provides the CLI subcommands for hybridragctl.
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// NewRootCmd builds the hybridragctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hybridragctl",
		Short: "Operate the hybrid RAG orchestrator",
		Long: `hybridragctl serves, ingests, and inspects the hybrid RAG
orchestrator: a question-answering system over a Polish document corpus
that retries unanswerable queries under alternate reasoning strategies and
retries them again once new matching documents appear.`,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newRetryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newResetSnapshotCmd())
	return cmd
}
