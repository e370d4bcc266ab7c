package worker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
)

type ThumbnailGenerator interface {
	Generate(ctx context.Context, videoPath, outputName string) (string, error)
}

type ThumbnailAttacher interface {
	AttachThumbnail(ctx context.Context, creativeID uuid.UUID, thumbnailPath string) error
}

type ObjectMirror interface {
	MirrorFile(ctx context.Context, objectKey, filePath, contentType string) (bool, error)
	RemoveMirror(ctx context.Context, objectKey string) error
}

// CreativeHandlers process the follow-up work of library inserts and deletes.
type CreativeHandlers struct {
	thumbnails ThumbnailGenerator
	library    ThumbnailAttacher
	mirror     ObjectMirror
	logger     *infra.LoggerClient
}

func NewCreativeHandlers(thumbnails ThumbnailGenerator, library ThumbnailAttacher, mirror ObjectMirror, logger *infra.LoggerClient) *CreativeHandlers {
	return &CreativeHandlers{thumbnails: thumbnails, library: library, mirror: mirror, logger: logger}
}

func (h *CreativeHandlers) HandleThumbnail(ctx context.Context, body []byte) error {
	var msg produce.ThumbnailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return poison("invalid thumbnail message: %v", err)
	}
	creativeID, err := uuid.Parse(msg.CreativeID)
	if err != nil {
		return poison("invalid creative id %q", msg.CreativeID)
	}
	if msg.CanonicalFilePath == "" {
		return poison("thumbnail message for %s has no file path", msg.CreativeID)
	}

	base := filepath.Base(msg.CanonicalFilePath)
	outputName := strings.TrimSuffix(base, filepath.Ext(base)) + "_thumb.jpg"

	path, err := h.thumbnails.Generate(ctx, msg.CanonicalFilePath, outputName)
	if err != nil {
		return err
	}
	if err := h.library.AttachThumbnail(ctx, creativeID, path); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return poison("creative %s was deleted before its thumbnail was attached", creativeID)
		}
		return err
	}
	h.logger.InfoWithContextf(ctx, "[Thumbnail] Attached %s to creative %s", path, creativeID)
	return nil
}

func (h *CreativeHandlers) HandleMirror(ctx context.Context, body []byte) error {
	var msg produce.MirrorMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return poison("invalid mirror message: %v", err)
	}
	if msg.ObjectKey == "" {
		return poison("mirror message for %s has no object key", msg.CreativeID)
	}

	if msg.Remove {
		if err := h.mirror.RemoveMirror(ctx, msg.ObjectKey); err != nil {
			return err
		}
		h.logger.InfoWithContextf(ctx, "[Mirror] Removed %s", msg.ObjectKey)
		return nil
	}

	uploaded, err := h.mirror.MirrorFile(ctx, msg.ObjectKey, msg.CanonicalFilePath, msg.ContentType)
	if err != nil {
		return err
	}
	if uploaded {
		h.logger.InfoWithContextf(ctx, "[Mirror] Mirrored creative %s as %s", msg.CreativeID, msg.ObjectKey)
	} else {
		h.logger.DebugWithContextf(ctx, "[Mirror] %s already mirrored", msg.ObjectKey)
	}
	return nil
}
