package hybridrag

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Engine. Fields map 1:1 onto the
// environment variables named in the external-interfaces section of the
// spec; NewConfigFromEnv loads them with sane local-development defaults.
type Config struct {
	ESURL             string `envconfig:"ES_URL" default:"http://elasticsearch:9200" yaml:"es_url"`
	QdrantURL         string `envconfig:"QDRANT_URL" default:"http://qdrant:6333" yaml:"qdrant_url"`
	OllamaHost        string `envconfig:"OLLAMA_HOST" default:"http://ollama:11434" yaml:"ollama_host"`
	OllamaModelName   string `envconfig:"OLLAMA_MODEL_NAME" default:"gemma2:2b" yaml:"ollama_model_name"`
	TransformerModel  string `envconfig:"TRANSFORMER_MODEL_NAME" default:"intfloat/multilingual-e5-small" yaml:"transformer_model_name"`
	SpacyModelName    string `envconfig:"SPACY_MODEL_NAME" default:"pl_core_news_sm" yaml:"spacy_model_name"`
	NLPServiceURL     string `envconfig:"NLP_SERVICE_URL" default:"http://nlp:8000" yaml:"nlp_service_url"`
	QdrantIndexName   string `envconfig:"QDRANT_INDEX_NAME" default:"culturax" yaml:"qdrant_index_name"`
	ESIndexName       string `envconfig:"ES_INDEX_NAME" default:"culturax" yaml:"es_index_name"`
	DataFileName      string `envconfig:"DATA_FILE_NAME" default:"culturax_vectors.ndjson" yaml:"data_file_name"`
	UnresolvedStorage string `envconfig:"UNRESOLVED_STORAGE_PATH" default:"" yaml:"unresolved_storage_path"`
	SnapshotPath      string `envconfig:"SNAPSHOT_STORAGE_PATH" default:"snapshots/initial_state.json" yaml:"snapshot_storage_path"`
	WatchCorpus       bool   `envconfig:"HYBRIDRAG_WATCH_CORPUS" default:"false" yaml:"watch_corpus"`
	CORSOrigins       string `envconfig:"HYBRIDRAG_CORS_ORIGINS" default:"" yaml:"cors_origins"`
	HTTPAddr          string `envconfig:"HYBRIDRAG_ADDR" default:":8080" yaml:"http_addr"`

	// EmbeddingDim must match the transformer model's output size; the
	// source corpus and index schema both assume 384.
	EmbeddingDim int `envconfig:"HYBRIDRAG_EMBEDDING_DIM" default:"384" yaml:"embedding_dim"`

	// MaxRounds must be positive (Validate rejects other values). The retry
	// loop does not read it: modify_prompt escalates once per entry of
	// reasoning.PromptCores, whatever MaxRounds is set to.
	MaxRounds int `envconfig:"HYBRIDRAG_MAX_ROUNDS" default:"3" yaml:"max_rounds"`

	// LocalMode, when true, backs the lexical/vector indices with the
	// in-process bleve/hnsw adapters instead of dialing ES_URL/QDRANT_URL.
	LocalMode bool `envconfig:"HYBRIDRAG_LOCAL_MODE" default:"false" yaml:"local_mode"`
}

// LoadYAMLOverrides reads a YAML file at path and overlays its fields onto
// cfg, letting a config file override environment-derived defaults. Zero
// fields in the YAML (unset keys) leave cfg's existing value untouched,
// since yaml.Unmarshal only writes keys present in the document.
func (c Config) LoadYAMLOverrides(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse yaml config: %w", err)
	}
	return c, nil
}

// NewConfigFromEnv loads Config from the process environment, applying the
// defaults above for anything unset.
func NewConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.UnresolvedStorage == "" {
		cfg.UnresolvedStorage = filepath.Join("rag", "memory", "unresolved_queries.json")
	}
	return cfg, nil
}

// Validate checks invariants Config must satisfy before an Engine can be
// constructed from it.
func (c Config) Validate() error {
	if c.EmbeddingDim <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxRounds <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
