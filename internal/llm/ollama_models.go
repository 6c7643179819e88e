package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// EnsureModel checks whether modelName is already present in the Ollama
// instance at baseURL and pulls it if missing, mirroring
// _ensure_model_exists in the source implementation.
func EnsureModel(ctx context.Context, baseURL, modelName string) error {
	present, err := hasModel(ctx, baseURL, modelName)
	if err != nil {
		return fmt.Errorf("llm: checking ollama model list: %w", err)
	}
	if present {
		return nil
	}
	return pullModel(ctx, baseURL, modelName)
}

func hasModel(ctx context.Context, baseURL, modelName string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama tags error %d", resp.StatusCode)
	}

	var listed struct {
		Models []struct {
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return false, err
	}
	for _, m := range listed.Models {
		if strings.HasPrefix(m.Model, modelName) {
			return true, nil
		}
	}
	return false, nil
}

func pullModel(ctx context.Context, baseURL, modelName string) error {
	body, err := json.Marshal(map[string]string{"model": modelName})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/pull", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", modelName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama pull error %d for model %s", resp.StatusCode, modelName)
	}
	return nil
}
