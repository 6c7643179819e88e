package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/brunobiangulo/hybridrag"
	"github.com/brunobiangulo/hybridrag/internal/api"
	"github.com/brunobiangulo/hybridrag/internal/detector"
	"github.com/brunobiangulo/hybridrag/internal/llm"
	"github.com/brunobiangulo/hybridrag/internal/memory"
	"github.com/brunobiangulo/hybridrag/internal/nlp"
)

// RunServer builds the full Engine/API stack from cfg and serves it until
// SIGINT/SIGTERM, shutting down gracefully. Shared by cmd/hybridragd and
// the hybridragctl serve subcommand so neither duplicates the wiring.
func RunServer(ctx context.Context, cfg hybridrag.Config, log zerolog.Logger) error {
	bootCtx, cancelBoot := context.WithTimeout(ctx, time.Minute)
	defer cancelBoot()

	idx, err := BuildIndices(bootCtx, cfg, log)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(llm.Config{Provider: "ollama", BaseURL: cfg.OllamaHost, Model: cfg.OllamaModelName})
	if err != nil {
		return err
	}

	nlpClient, err := nlp.New(cfg.NLPServiceURL, log)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.UnresolvedStorage), 0o755); err != nil {
		return err
	}
	mem, err := memory.Open(cfg.UnresolvedStorage)
	if err != nil {
		return err
	}

	det, err := detector.New(bootCtx, idx.Scroller, idx.Lookup, cfg.SnapshotPath)
	if err != nil {
		return err
	}

	engine := hybridrag.NewEngine(idx.Lexical, idx.Vector, provider, nlpClient, mem, cfg.OllamaModelName,
		hybridrag.WithLogger(log.With().Str("component", "engine").Logger()))

	mux := http.NewServeMux()
	api.New(engine, det, log.With().Str("component", "api").Logger()).Routes(mux)

	var handler http.Handler = mux
	handler = api.LogMiddleware(log)(handler)
	handler = api.CORSMiddleware(cfg.CORSOrigins)(handler)
	handler = api.RecoveryMiddleware(log)(handler)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-done:
		log.Info().Msg("shutting down server")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
