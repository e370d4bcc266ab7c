package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/repository"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

type CreativeRepository interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*entity.Creative, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Creative, error)
	InsertIfAbsent(ctx context.Context, creative *entity.Creative, onInserted func(*entity.Creative) error) (bool, error)
	UpdateThumbnail(ctx context.Context, id uuid.UUID, thumbnailPath string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter repository.CreativeFilter) ([]entity.Creative, error)
	AssignBatchGroup(ctx context.Context, creativeIDs []uuid.UUID, groupID *uuid.UUID) (int64, error)
}

// Events is notified after the library changed. Errors are logged, never returned.
type Events interface {
	CreativeCreated(ctx context.Context, creative *entity.Creative) error
	CreativeDeleted(ctx context.Context, creative *entity.Creative) error
}

// Metadata describes an incoming file.
type Metadata struct {
	OriginalName string
	ContentType  string
	ByteSize     int64
	BatchGroupID *uuid.UUID
}

// Store is the content addressed creative library. It owns the files under root.
type Store struct {
	repo   CreativeRepository
	root   string
	events Events
	logger *infra.LoggerClient
}

func NewStore(repo CreativeRepository, root string, events Events, logger *infra.LoggerClient) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.NewIOError("mkdir", root, err)
	}
	return &Store{repo: repo, root: root, events: events, logger: logger}, nil
}

func (s *Store) Root() string { return s.root }

// CanonicalPath is root/fingerprint.ext.
func (s *Store) CanonicalPath(fingerprint, originalName string) string {
	return filepath.Join(s.root, utils.CanonicalName(fingerprint, originalName))
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*entity.Creative, error) {
	return s.repo.FindByFingerprint(ctx, fingerprint)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*entity.Creative, error) {
	creative, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if creative == nil {
		return nil, apperr.ErrNotFound
	}
	return creative, nil
}

func (s *Store) List(ctx context.Context, filter repository.CreativeFilter) ([]entity.Creative, error) {
	return s.repo.List(ctx, filter)
}

const maxInsertAttempts = 3

// InsertNew moves tempPath into the library and records the creative. When another caller
// won the race for the same fingerprint, the temp file is discarded and the existing creative
// is returned with inserted=false. On error the temp file is left for the caller.
func (s *Store) InsertNew(ctx context.Context, tempPath, fingerprint string, meta Metadata) (*entity.Creative, bool, error) {
	canonical := s.CanonicalPath(fingerprint, meta.OriginalName)

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		creative := &entity.Creative{
			ID:                uuid.New(),
			Fingerprint:       fingerprint,
			OriginalName:      meta.OriginalName,
			MimeClass:         ClassOf(meta.ContentType, meta.OriginalName),
			ContentType:       meta.ContentType,
			ByteSize:          meta.ByteSize,
			CanonicalFilePath: canonical,
			BatchGroupID:      meta.BatchGroupID,
			CreatedAt:         time.Now(),
		}

		moved := false
		inserted, err := s.repo.InsertIfAbsent(ctx, creative, func(*entity.Creative) error {
			if err := moveFile(tempPath, canonical); err != nil {
				return err
			}
			moved = true
			return nil
		})
		if err != nil {
			if moved {
				// The row was rolled back after the move; put the file back so nothing points at it.
				if restoreErr := moveFile(canonical, tempPath); restoreErr != nil {
					s.logger.ErrorWithContextf(ctx, restoreErr, "[Library] Failed to restore %s after rollback", tempPath)
				}
			}
			return nil, false, fmt.Errorf("failed to insert creative %s: %w", fingerprint, err)
		}

		if inserted {
			s.logger.InfoWithContextf(ctx, "[Library] Stored creative %s (%s) at %s", creative.ID, fingerprint, canonical)
			if s.events != nil {
				if err := s.events.CreativeCreated(ctx, creative); err != nil {
					s.logger.WarningWithContextf(ctx, "[Library] Post-insert notification failed for %s: %v", creative.ID, err)
				}
			}
			return creative, true, nil
		}

		existing, err := s.repo.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			// The winner was deleted between our insert and lookup; try again.
			continue
		}
		s.Discard(ctx, tempPath)
		s.logger.InfoWithContextf(ctx, "[Library] Fingerprint %s already stored as %s, discarded upload", fingerprint, existing.ID)
		return existing, false, nil
	}

	return nil, false, fmt.Errorf("failed to insert creative %s after %d attempts", fingerprint, maxInsertAttempts)
}

// Discard removes an upload temp file. Paths inside the library are never removed here.
func (s *Store) Discard(ctx context.Context, tempPath string) {
	if tempPath == "" || s.isInside(tempPath) {
		return
	}
	if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WarningWithContextf(ctx, "[Library] Failed to discard temp file %s: %v", tempPath, err)
	}
}

func (s *Store) AttachThumbnail(ctx context.Context, creativeID uuid.UUID, thumbnailPath string) error {
	if err := s.repo.UpdateThumbnail(ctx, creativeID, thumbnailPath); err != nil {
		return fmt.Errorf("failed to attach thumbnail to %s: %w", creativeID, err)
	}
	return nil
}

// Delete removes the files first. If a file cannot be removed the record is kept
// and the error is returned.
func (s *Store) Delete(ctx context.Context, creativeID uuid.UUID) error {
	creative, err := s.Get(ctx, creativeID)
	if err != nil {
		return err
	}

	paths := []string{creative.CanonicalFilePath}
	if creative.ThumbnailPath != nil && *creative.ThumbnailPath != "" {
		paths = append(paths, *creative.ThumbnailPath)
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return apperr.NewIOError("remove", p, err)
		}
	}

	if err := s.repo.Delete(ctx, creativeID); err != nil {
		return fmt.Errorf("files of %s removed but record deletion failed: %w", creativeID, err)
	}
	s.logger.InfoWithContextf(ctx, "[Library] Deleted creative %s (%s)", creative.ID, creative.Fingerprint)

	if s.events != nil {
		if err := s.events.CreativeDeleted(ctx, creative); err != nil {
			s.logger.WarningWithContextf(ctx, "[Library] Post-delete notification failed for %s: %v", creative.ID, err)
		}
	}
	return nil
}

func (s *Store) AssignBatchGroup(ctx context.Context, creativeIDs []uuid.UUID, groupID *uuid.UUID) (int64, error) {
	return s.repo.AssignBatchGroup(ctx, creativeIDs, groupID)
}

func (s *Store) isInside(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	return err == nil && !strings.HasPrefix(rel, "..") && rel != "."
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".avi": true, ".webm": true, ".mkv": true, ".3gp": true,
}

// ClassOf classifies by content type, falling back to the file extension.
func ClassOf(contentType, name string) entity.MimeClass {
	ext := strings.ToLower(filepath.Ext(name))
	if contentType == "" || contentType == "application/octet-stream" {
		if videoExtensions[ext] {
			return entity.MimeClassVideo
		}
		contentType = mime.TypeByExtension(ext)
	}
	if strings.HasPrefix(contentType, "video/") {
		return entity.MimeClassVideo
	}
	return entity.MimeClassImage
}

// moveFile renames src to dst, copying across filesystems when rename is not possible.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.NewIOError("mkdir", filepath.Dir(dst), err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return apperr.NewIOError("open", src, err)
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return apperr.NewIOError("create", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return apperr.NewIOError("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return apperr.NewIOError("close", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return apperr.NewIOError("rename", dst, err)
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.NewIOError("remove", src, err)
	}
	return nil
}

// Heal puts tempPath in place when the canonical file of a known creative has gone missing.
// It reports whether the temp file was consumed.
func (s *Store) Heal(ctx context.Context, creative *entity.Creative, tempPath string) (bool, error) {
	if _, err := os.Stat(creative.CanonicalFilePath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, apperr.NewIOError("stat", creative.CanonicalFilePath, err)
	}
	if err := moveFile(tempPath, creative.CanonicalFilePath); err != nil {
		return false, err
	}
	s.logger.WarningWithContextf(ctx, "[Library] Canonical file of %s was missing, restored from upload", creative.ID)
	return true, nil
}
