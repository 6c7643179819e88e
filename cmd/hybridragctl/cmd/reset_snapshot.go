package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/hybridrag"
	"github.com/brunobiangulo/hybridrag/internal/bootstrap"
	"github.com/brunobiangulo/hybridrag/internal/detector"
)

func newResetSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-snapshot",
		Short: "Rebuild the document-change-detector baseline from the current indices",
		Long: `reset-snapshot scrolls the full corpus currently in the lexical
index and writes it as the new baseline snapshot, so GetNewDocuments no
longer reports any of today's documents as new. Use this after a bulk
re-ingest that should not itself trigger retries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := hybridrag.NewConfigFromEnv()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			idx, err := bootstrap.BuildIndices(ctx, cfg, log)
			if err != nil {
				return err
			}

			det, err := detector.New(ctx, idx.Scroller, idx.Lookup, cfg.SnapshotPath)
			if err != nil {
				return err
			}
			if err := det.ResetInitialState(ctx); err != nil {
				return err
			}
			log.Info().Int("documents", det.InitialDocumentCount()).Msg("snapshot reset")
			return nil
		},
	}
}
