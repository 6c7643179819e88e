package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func serverURL() string {
	if v := os.Getenv("HYBRIDRAG_SERVER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func getJSON(path string, out any) error {
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Get(serverURL() + path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func postJSON(path string, out any) error {
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Post(serverURL()+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func decodeOrError(resp *http.Response, out any) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
