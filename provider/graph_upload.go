package provider

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
)

// ProgressFunc receives the transfer progress of one upload in percent (0-100).
type ProgressFunc func(percent float64)

type adImagesResponse struct {
	Images map[string]struct {
		Hash string `json:"hash"`
		URL  string `json:"url"`
	} `json:"images"`
}

// UploadImage pushes an image file to the ad account image library and returns its hash.
func (g *GraphClient) UploadImage(ctx context.Context, filePath, adAccountID, token string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", apperr.NewIOError("read", filePath, err)
	}
	name := filepath.Base(filePath)

	var resp adImagesResponse
	err = g.do(ctx, request{
		op:        "upload_image",
		method:    http.MethodPost,
		path:      AccountPath(adAccountID) + "/adimages",
		accountID: adAccountID,
		token:     token,
		multipart: func(w *multipart.Writer) error {
			return writeFilePart(w, "filename", name, content)
		},
	}, &resp)
	if err != nil {
		return "", err
	}

	for _, img := range resp.Images {
		if img.Hash != "" {
			return img.Hash, nil
		}
	}
	return "", &apperr.RemoteUploadError{
		Service:    guard.FacebookAPI,
		Operation:  "upload_image",
		StatusCode: http.StatusOK,
		Err:        fmt.Errorf("response carried no image hash"),
	}
}

// UploadVideo pushes a video and returns its id. Files up to the simple threshold go in one
// request; larger files use the start/transfer/finish resumable protocol.
func (g *GraphClient) UploadVideo(ctx context.Context, filePath, adAccountID, token string, progress ProgressFunc) (string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", apperr.NewIOError("stat", filePath, err)
	}

	if info.Size() <= g.simpleThreshold {
		return g.uploadVideoSimple(ctx, filePath, adAccountID, token, progress)
	}
	return g.uploadVideoResumable(ctx, filePath, info.Size(), adAccountID, token, progress)
}

type idResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

func (g *GraphClient) uploadVideoSimple(ctx context.Context, filePath, adAccountID, token string, progress ProgressFunc) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", apperr.NewIOError("read", filePath, err)
	}
	name := filepath.Base(filePath)

	var resp idResponse
	err = g.do(ctx, request{
		op:        "upload_video",
		method:    http.MethodPost,
		path:      AccountPath(adAccountID) + "/advideos",
		accountID: adAccountID,
		token:     token,
		multipart: func(w *multipart.Writer) error {
			if err := w.WriteField("name", name); err != nil {
				return err
			}
			return writeFilePart(w, "source", name, content)
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &apperr.RemoteUploadError{
			Service:    guard.FacebookAPI,
			Operation:  "upload_video",
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("response carried no video id"),
		}
	}
	if progress != nil {
		progress(100)
	}
	return resp.ID, nil
}

type uploadPhase string

const (
	phaseStart    uploadPhase = "start"
	phaseTransfer uploadPhase = "transfer"
	phaseFinish   uploadPhase = "finish"
)

type startResponse struct {
	UploadSessionID string `json:"upload_session_id"`
	VideoID         string `json:"video_id"`
	StartOffset     string `json:"start_offset"`
	EndOffset       string `json:"end_offset"`
}

type transferResponse struct {
	StartOffset string `json:"start_offset"`
	EndOffset   string `json:"end_offset"`
}

// resumableUpload is the state of one start/transfer/finish upload. A failed chunk
// fails the whole upload; nothing is persisted so a restart begins from offset zero.
type resumableUpload struct {
	g         *GraphClient
	file      *os.File
	filePath  string
	name      string
	total     int64
	accountID string
	token     string
	progress  ProgressFunc

	phase     uploadPhase
	sessionID string
	videoID   string
	offset    int64
}

func (g *GraphClient) uploadVideoResumable(ctx context.Context, filePath string, size int64, adAccountID, token string, progress ProgressFunc) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", apperr.NewIOError("open", filePath, err)
	}
	defer f.Close()

	u := &resumableUpload{
		g:         g,
		file:      f,
		filePath:  filePath,
		name:      filepath.Base(filePath),
		total:     size,
		accountID: adAccountID,
		token:     token,
		progress:  progress,
		phase:     phaseStart,
	}
	return u.run(ctx)
}

func (u *resumableUpload) run(ctx context.Context) (string, error) {
	for {
		switch u.phase {
		case phaseStart:
			if err := u.start(ctx); err != nil {
				return "", err
			}
			u.phase = phaseTransfer
		case phaseTransfer:
			if u.offset >= u.total {
				u.phase = phaseFinish
				continue
			}
			if err := u.transfer(ctx); err != nil {
				return "", err
			}
		case phaseFinish:
			if err := u.finish(ctx); err != nil {
				return "", err
			}
			return u.videoID, nil
		}
	}
}

func (u *resumableUpload) start(ctx context.Context) error {
	var resp startResponse
	err := u.g.do(ctx, request{
		op:        "upload_video_start",
		method:    http.MethodPost,
		path:      AccountPath(u.accountID) + "/advideos",
		accountID: u.accountID,
		token:     u.token,
		form: url.Values{
			"upload_phase": {string(phaseStart)},
			"file_size":    {strconv.FormatInt(u.total, 10)},
		},
	}, &resp)
	if err != nil {
		return err
	}
	if resp.UploadSessionID == "" || resp.VideoID == "" {
		return &apperr.RemoteUploadError{
			Service:    guard.FacebookAPI,
			Operation:  "upload_video_start",
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("start phase returned no upload session"),
		}
	}
	u.sessionID = resp.UploadSessionID
	u.videoID = resp.VideoID
	u.offset = parseOffset(resp.StartOffset, 0)
	u.g.logger.InfoWithContextf(ctx, "[Graph] Resumable upload of %s started: video %s, %d bytes", u.name, u.videoID, u.total)
	return nil
}

func (u *resumableUpload) transfer(ctx context.Context) error {
	size := u.g.chunkSize
	if remaining := u.total - u.offset; remaining < size {
		size = remaining
	}
	chunk := make([]byte, size)
	n, err := u.file.ReadAt(chunk, u.offset)
	if err != nil && err != io.EOF {
		return apperr.NewIOError("read", u.filePath, err)
	}
	chunk = chunk[:n]
	if n == 0 {
		return apperr.NewIOError("read", u.filePath, fmt.Errorf("file shorter than declared size %d", u.total))
	}

	var resp transferResponse
	err = u.g.do(ctx, request{
		op:        "upload_video_transfer",
		method:    http.MethodPost,
		path:      AccountPath(u.accountID) + "/advideos",
		accountID: u.accountID,
		token:     u.token,
		multipart: func(w *multipart.Writer) error {
			if err := w.WriteField("upload_phase", string(phaseTransfer)); err != nil {
				return err
			}
			if err := w.WriteField("upload_session_id", u.sessionID); err != nil {
				return err
			}
			if err := w.WriteField("start_offset", strconv.FormatInt(u.offset, 10)); err != nil {
				return err
			}
			return writeFilePart(w, "video_file_chunk", u.name, chunk)
		},
	}, &resp)
	if err != nil {
		return err
	}

	// The server tells us where the next chunk begins.
	next := parseOffset(resp.StartOffset, u.offset+int64(n))
	if next <= u.offset {
		return &apperr.RemoteUploadError{
			Service:    guard.FacebookAPI,
			Operation:  "upload_video_transfer",
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("transfer made no progress at offset %d", u.offset),
		}
	}
	u.offset = next

	if u.progress != nil {
		pct := float64(u.offset) * 100 / float64(u.total)
		if pct > 100 {
			pct = 100
		}
		u.progress(pct)
	}
	return nil
}

func (u *resumableUpload) finish(ctx context.Context) error {
	var resp idResponse
	err := u.g.do(ctx, request{
		op:        "upload_video_finish",
		method:    http.MethodPost,
		path:      AccountPath(u.accountID) + "/advideos",
		accountID: u.accountID,
		token:     u.token,
		form: url.Values{
			"upload_phase":      {string(phaseFinish)},
			"upload_session_id": {u.sessionID},
			"title":             {u.name},
		},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &apperr.RemoteUploadError{
			Service:    guard.FacebookAPI,
			Operation:  "upload_video_finish",
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("finish phase was not acknowledged"),
		}
	}
	return nil
}

func parseOffset(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func writeFilePart(w *multipart.Writer, field, filename string, content []byte) error {
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write %s part: %w", field, err)
	}
	return nil
}
