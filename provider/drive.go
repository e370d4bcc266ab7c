package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
)

// DriveFile is a Google Drive file downloaded into the temp dir.
type DriveFile struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	TempPath string
}

type DriveClient struct {
	baseURL    string
	tempDir    string
	httpClient *http.Client
	breaker    *guard.Breaker
}

func NewDriveClient(cfg *config.EnvConfig, breakers *guard.Breakers) *DriveClient {
	return &DriveClient{
		baseURL:    cfg.ExternalService.GoogleDriveURL,
		tempDir:    cfg.Library.TempDir,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		breaker:    breakers.Get(guard.GoogleDriveAPI),
	}
}

type driveMetadata struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size"`
}

// Fetch downloads the file content by id using the caller's OAuth token.
func (d *DriveClient) Fetch(ctx context.Context, fileID, oauthToken string) (*DriveFile, error) {
	return guard.Execute(ctx, d.breaker, func(ctx context.Context) (*DriveFile, error) {
		meta, err := d.metadata(ctx, fileID, oauthToken)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/files/%s?alt=media&supportsAllDrives=true", d.baseURL, url.PathEscape(fileID)), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+oauthToken)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, d.remoteErr("download", 0, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, d.remoteErr("download", resp.StatusCode, fmt.Errorf("%s", raw))
		}

		tmp, err := os.CreateTemp(d.tempDir, "drive-*"+filepath.Ext(meta.Name))
		if err != nil {
			return nil, apperr.NewIOError("create", d.tempDir, err)
		}
		written, err := io.Copy(tmp, resp.Body)
		closeErr := tmp.Close()
		if err != nil || closeErr != nil {
			_ = os.Remove(tmp.Name())
			if err == nil {
				err = closeErr
			}
			return nil, apperr.NewIOError("write", tmp.Name(), err)
		}

		return &DriveFile{
			ID:       fileID,
			Name:     meta.Name,
			MimeType: meta.MimeType,
			Size:     written,
			TempPath: tmp.Name(),
		}, nil
	})
}

func (d *DriveClient) metadata(ctx context.Context, fileID, oauthToken string) (*driveMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/files/%s?fields=name,mimeType,size&supportsAllDrives=true", d.baseURL, url.PathEscape(fileID)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+oauthToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, d.remoteErr("metadata", 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, d.remoteErr("metadata", resp.StatusCode, fmt.Errorf("%s", raw))
	}

	var meta driveMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, d.remoteErr("metadata", resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	if meta.Name == "" {
		meta.Name = fileID
	}
	return &meta, nil
}

func (d *DriveClient) remoteErr(op string, status int, err error) error {
	return &apperr.RemoteUploadError{
		Service:    guard.GoogleDriveAPI,
		Operation:  op,
		StatusCode: status,
		Err:        err,
	}
}
