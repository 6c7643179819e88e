// Command hybridragd runs the HTTP orchestrator server: it wires the
// lexical/vector indices, the LLM provider, the NLP pipeline, and the
// unresolved-query memory store into a hybridrag.Engine and serves the
// /ask, /pending, /retry, /retry_all, and /stats routes.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/brunobiangulo/hybridrag"
	"github.com/brunobiangulo/hybridrag/internal/bootstrap"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := hybridrag.NewConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if err := bootstrap.RunServer(context.Background(), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}
