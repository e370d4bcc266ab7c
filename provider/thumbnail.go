package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
)

// ThumbnailClient calls the external frame extraction service.
type ThumbnailClient struct {
	serviceURL string
	httpClient *http.Client
	breaker    *guard.Breaker
}

func NewThumbnailClient(cfg *config.EnvConfig, breakers *guard.Breakers) *ThumbnailClient {
	return &ThumbnailClient{
		serviceURL: cfg.ExternalService.ThumbnailServiceURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		breaker:    breakers.Get(guard.ThumbnailAPI),
	}
}

type thumbnailRequest struct {
	SourcePath string `json:"source_path"`
	OutputName string `json:"output_name"`
	AtSecond   int    `json:"at_second"`
}

type thumbnailResponse struct {
	ThumbnailPath string `json:"thumbnail_path"`
}

// Generate returns the path of a JPEG frame extracted from the video.
func (t *ThumbnailClient) Generate(ctx context.Context, videoPath, outputName string) (string, error) {
	return guard.Execute(ctx, t.breaker, func(ctx context.Context) (string, error) {
		body, err := json.Marshal(thumbnailRequest{SourcePath: videoPath, OutputName: outputName, AtSecond: 1})
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serviceURL+"/api/v1/thumbnails", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return "", &apperr.RemoteUploadError{Service: guard.ThumbnailAPI, Operation: "generate", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return "", &apperr.RemoteUploadError{
				Service:    guard.ThumbnailAPI,
				Operation:  "generate",
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s", raw),
			}
		}

		var out thumbnailResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if out.ThumbnailPath == "" {
			return "", fmt.Errorf("thumbnail service returned no path")
		}
		return out.ThumbnailPath, nil
	})
}
