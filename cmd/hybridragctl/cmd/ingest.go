package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/hybridrag"
	"github.com/brunobiangulo/hybridrag/internal/bootstrap"
	"github.com/brunobiangulo/hybridrag/internal/llm"
)

func newIngestCmd() *cobra.Command {
	var corpusPath string
	var chunkerName string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the NDJSON corpus into the lexical and vector indices",
		Long: `ingest streams a pre-embedded NDJSON corpus file, skipping
documents already present in both indices (a document missing from one
index is written to that index only), filling in years via the metadata
extractor for records without entities/places/years, and ensuring the
configured Ollama model is pulled before the server depends on it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := hybridrag.NewConfigFromEnv()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if corpusPath == "" {
				corpusPath = filepath.Join("rag", "data", cfg.DataFileName)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			if err := bootstrap.EnsureModel(ctx, cfg.OllamaHost, cfg.OllamaModelName, log); err != nil {
				return fmt.Errorf("ensure model: %w", err)
			}

			idx, err := bootstrap.BuildIndices(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("build indices: %w", err)
			}

			provider, err := llm.NewProvider(llm.Config{Provider: "ollama", BaseURL: cfg.OllamaHost, Model: cfg.OllamaModelName})
			if err != nil {
				return fmt.Errorf("build llm provider: %w", err)
			}

			mode := bootstrap.ChunkModeNone
			if chunkerName == "token-window" {
				mode = bootstrap.ChunkModeToken
			} else if chunkerName != "" && chunkerName != "sentence" {
				return fmt.Errorf("unknown --chunker %q (want sentence or token-window)", chunkerName)
			}

			ingested, err := bootstrap.IngestCorpus(ctx, idx, corpusPath, provider, cfg.OllamaModelName, mode, log)
			if err != nil {
				return fmt.Errorf("ingest corpus: %w", err)
			}
			log.Info().Int("ingested", ingested).Str("path", corpusPath).Msg("ingest complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Path to the NDJSON corpus file (default rag/data/<DATA_FILE_NAME>)")
	cmd.Flags().StringVar(&chunkerName, "chunker", "sentence", "Chunking strategy to exercise: sentence (default, production) or token-window (debug)")
	return cmd
}
